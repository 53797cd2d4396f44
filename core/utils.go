package core

import "net"

func isIPv4(ip net.IP) bool {
	return ip.To4() != nil
}

// udpNetwork returns the network to listen on to reach ip.
func udpNetwork(ip net.IP) string {
	if ip == nil || isIPv4(ip) {
		return "udp4"
	}
	return "udp6"
}
