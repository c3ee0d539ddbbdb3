// Package ant deframes the byte stream coming off an ANT USB stick
// and surfaces FE-C broadcast payloads.
//
// Stick framing: 0xA4 sync, payload length, message ID, payload,
// then an XOR checksum over everything before it.
package ant

import (
	"bufio"
	"io"
	"log"
)

const (
	syncByte         = 0xA4
	msgBroadcastData = 0x4E
	maxPayload       = 32
)

// Reader pulls ANT messages off an underlying byte stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the payload of the next broadcast-data message,
// skipping other message types. Framing errors (lost sync, bad
// checksum) are logged and resynced, never returned; only a real read
// error from the stream ends the loop.
func (r *Reader) Next() ([]byte, error) {
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != syncByte {
			continue
		}

		length, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if int(length) > maxPayload {
			log.Printf("[ANT] implausible payload length %d, resyncing", length)
			continue
		}

		msgID, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(r.br, payload); err != nil {
			return nil, err
		}

		sum, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if sum != checksum(length, msgID, payload) {
			log.Printf("[ANT] checksum mismatch on message 0x%02X, dropped", msgID)
			continue
		}

		if msgID != msgBroadcastData {
			continue
		}
		return payload, nil
	}
}

func checksum(length, msgID byte, payload []byte) byte {
	sum := byte(syncByte) ^ length ^ msgID
	for _, b := range payload {
		sum ^= b
	}
	return sum
}
