package core

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

const defaultSendTimeout = 5 * time.Second

// RawSocketTransport writes a TSPL command stream over a short-lived TCP
// connection to the printer. One connection per label; the printers drop
// idle sockets anyway, and reconnecting keeps failure handling simple.
type RawSocketTransport struct {
	Address string
	Timeout time.Duration
}

func NewRawSocketTransport(ip string, port int, timeout time.Duration) *RawSocketTransport {
	if port == 0 {
		port = 9100
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &RawSocketTransport{
		Address: fmt.Sprintf("%s:%d", ip, port),
		Timeout: timeout,
	}
}

func (t *RawSocketTransport) Encoding() label.Encoding {
	return label.EncodingTSPL
}

func (t *RawSocketTransport) Send(payload []byte) error {
	conn, err := net.DialTimeout("tcp", t.Address, t.Timeout)
	if err != nil {
		return classifyNetError(err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(t.Timeout)); err != nil {
		return &DeliveryError{Kind: DeliveryOther, Message: err.Error()}
	}

	if _, err := conn.Write(payload); err != nil {
		return classifyNetError(err)
	}

	return nil
}

func classifyNetError(err error) *DeliveryError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DeliveryError{Kind: DeliveryTimeout, Message: err.Error()}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &DeliveryError{Kind: DeliveryConnectionRefused, Message: err.Error()}
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return &DeliveryError{Kind: DeliveryUnreachable, Message: err.Error()}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeliveryError{Kind: DeliveryUnreachable, Message: err.Error()}
	}
	return &DeliveryError{Kind: DeliveryOther, Message: err.Error()}
}
