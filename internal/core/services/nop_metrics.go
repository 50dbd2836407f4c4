package services

import (
	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
)

// NopMetrics discards every observation.
type NopMetrics struct{}

var _ ports.CoordinatorMetrics = NopMetrics{}

func (NopMetrics) PeerJoined(domain.Namespace)       {}
func (NopMetrics) PeerLeft(domain.Namespace)         {}
func (NopMetrics) RoomOpened(domain.Namespace)       {}
func (NopMetrics) RoomClosed(domain.Namespace)       {}
func (NopMetrics) HostElected(domain.ElectionReason) {}
func (NopMetrics) SignalRelayed(string, bool)        {}
func (NopMetrics) Broadcast(string, int)             {}
