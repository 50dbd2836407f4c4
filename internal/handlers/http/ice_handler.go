package http

import (
	"net/http"

	"codemeet/pkg/config"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
)

type ICEHandler struct {
	servers []webrtc.ICEServer
}

// NewICEHandler converts the configured STUN/TURN servers once.
func NewICEHandler(servers []config.ICEServer) *ICEHandler {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" || s.Credential != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, server)
	}
	return &ICEHandler{servers: out}
}

func (h *ICEHandler) SetupRoutes(api gin.IRoutes) {
	api.GET("/ice-servers", h.GetICEServers)
}

func (h *ICEHandler) GetICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.servers})
}
