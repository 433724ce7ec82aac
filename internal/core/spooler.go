package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

// SpoolerTransport hands a PNG raster to the host print queue via lp.
// Success means the spooler accepted the file, not that paper came out;
// the spooler does its own retrying below this layer.
type SpoolerTransport struct {
	QueueName string
	Timeout   time.Duration
}

func NewSpoolerTransport(queueName string, timeout time.Duration) *SpoolerTransport {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &SpoolerTransport{QueueName: queueName, Timeout: timeout}
}

func (t *SpoolerTransport) Encoding() label.Encoding {
	return label.EncodingPNG
}

func (t *SpoolerTransport) Send(payload []byte) error {
	tmp, err := os.CreateTemp("", "label-*.png")
	if err != nil {
		return &DeliveryError{Kind: DeliveryOther, Message: fmt.Sprintf("failed to create spool file: %v", err)}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return &DeliveryError{Kind: DeliveryOther, Message: fmt.Sprintf("failed to write spool file: %v", err)}
	}
	if err := tmp.Close(); err != nil {
		return &DeliveryError{Kind: DeliveryOther, Message: fmt.Sprintf("failed to close spool file: %v", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "lp", "-d", t.QueueName, tmp.Name())
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return &DeliveryError{Kind: DeliveryTimeout, Message: fmt.Sprintf("lp timed out after %s", t.Timeout)}
	}
	if err != nil {
		return &DeliveryError{Kind: DeliveryOther, Message: fmt.Sprintf("lp failed: %v: %s", err, output)}
	}

	return nil
}
