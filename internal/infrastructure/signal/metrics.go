package signal

import "time"

type nopGatewayMetrics struct{}

func (nopGatewayMetrics) ConnectionOpened(string)                {}
func (nopGatewayMetrics) ConnectionClosed(string, time.Duration) {}
func (nopGatewayMetrics) MessageReceived(string)                 {}
func (nopGatewayMetrics) MessageDropped(string)                  {}
