package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeedSendsExactlyCountDatagrams(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan struct{}, 64)
	go func() {
		buf := make([]byte, 256)
		for {
			_, err := listener.Read(buf)
			if err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	conn, err := net.DialUDP("udp", nil, listener.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, feed(conn, 10, 32, time.Microsecond))

	count := 0
	timeout := time.After(time.Second)
	for count < 10 {
		select {
		case <-received:
			count++
		case <-timeout:
			t.Fatalf("only received %d of 10 datagrams", count)
		}
	}
}
