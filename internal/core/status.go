package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

var ErrInvalidStatus = errors.New("invalid status response")

const (
	statusCommand        = "\x1b!?"
	statusResponseLength = 4
)

// PrinterStatus is the decoded 4-byte reply to the TSPL status query. Only
// meaningful for the raw socket transport; a spooler hides the printer.
type PrinterStatus struct {
	RawStatus    [4]byte   `json:"-"`
	PrinterState string    `json:"printer_state"`
	Warning      string    `json:"warning"`
	Error        string    `json:"error"`
	MediaError   string    `json:"media_error"`
	IsOnline     bool      `json:"is_online"`
	CanPrint     bool      `json:"can_print"`
	LastChecked  time.Time `json:"last_checked"`
}

var printerStateMap = map[byte]string{
	'@': "normal",
	'F': "feeding",
	'P': "paused",
	'E': "error",
	'H': "head_open",
	'S': "standby",
	'L': "label_waiting",
	'I': "idle",
}

var warningMap = map[byte]string{
	'@': "none",
	'A': "paper_low",
	'B': "ribbon_low",
	'C': "paper_and_ribbon_low",
}

var errorMap = map[byte]string{
	'@': "none",
	'A': "head_overheat",
	'B': "motor_overheat",
	'C': "head_and_motor_overheat",
	'D': "head_error",
	'E': "cutter_error",
	'F': "rtc_error",
}

var mediaErrorMap = map[byte]string{
	'@': "none",
	'A': "paper_empty",
	'B': "ribbon_empty",
	'C': "paper_and_ribbon_empty",
	'D': "takeup_reel_full",
	'`': "head_open",
}

// Probe queries the printer over a dedicated short-lived connection. It runs
// outside the worker loop, so it must not reuse the transport's socket.
func (t *RawSocketTransport) Probe() (*PrinterStatus, error) {
	offline := func() *PrinterStatus {
		return &PrinterStatus{LastChecked: time.Now()}
	}

	conn, err := net.DialTimeout("tcp", t.Address, t.Timeout)
	if err != nil {
		return offline(), classifyNetError(err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(t.Timeout))

	if _, err := conn.Write([]byte(statusCommand)); err != nil {
		return offline(), classifyNetError(err)
	}

	response := make([]byte, statusResponseLength)
	totalRead := 0
	for totalRead < statusResponseLength {
		n, err := conn.Read(response[totalRead:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return offline(), classifyNetError(err)
		}
		totalRead += n
	}
	if totalRead < statusResponseLength {
		return offline(), fmt.Errorf("%w: got %d of %d bytes", ErrInvalidStatus, totalRead, statusResponseLength)
	}

	status := parseStatus(response)
	status.IsOnline = true
	status.LastChecked = time.Now()
	status.CanPrint = status.PrinterState == "normal" || status.PrinterState == "standby" || status.PrinterState == "idle"
	return status, nil
}

func parseStatus(response []byte) *PrinterStatus {
	status := &PrinterStatus{
		RawStatus: [4]byte{response[0], response[1], response[2], response[3]},
	}

	status.PrinterState = lookupStatus(printerStateMap, response[0])
	status.Warning = lookupStatus(warningMap, response[1])
	status.Error = lookupStatus(errorMap, response[2])
	status.MediaError = lookupStatus(mediaErrorMap, response[3])

	return status
}

func lookupStatus(m map[byte]string, b byte) string {
	if s, ok := m[b]; ok {
		return s
	}
	return "unknown"
}
