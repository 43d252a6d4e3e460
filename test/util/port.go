package util

import (
	"net"
	"strconv"

	"github.com/DE-labtory/hbbft"
)

func GetAvailablePort(startPort uint16) uint16 {
	portNumber := startPort
	for {
		strPortNumber := strconv.Itoa(int(portNumber))
		lis, err := net.Listen("tcp", "127.0.0.1:"+strPortNumber)
		if err == nil {
			lis.Close()
			return portNumber
		}
		portNumber++
	}
}

// GetAvailableAddresses finds n local addresses which are free to listen
func GetAvailableAddresses(n int, startPort uint16) []hbbft.Address {
	addrs := make([]hbbft.Address, 0, n)
	port := startPort
	for len(addrs) < n {
		port = GetAvailablePort(port)
		addrs = append(addrs, hbbft.Address{Ip: "127.0.0.1", Port: port})
		port++
	}
	return addrs
}
