// Package pcap reads network captures as a scalar measurement stream,
// one sample per packet. The measurement is the frame length in bytes,
// which makes volume spikes and unusually large frames stand out to a
// windowed detector.
package pcap

import (
	"context"
	"errors"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	streamio "github.com/edgestat/streamwatch/pkg/io"
)

// Reader reads packets from PCAP files or live interfaces.
type Reader struct {
	handle *pcap.Handle
	isLive bool
	next   uint64
}

// NewFileReader creates a reader for PCAP files.
func NewFileReader(filename string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, err
	}

	return &Reader{handle: handle}, nil
}

// NewLiveReader creates a reader for live packet capture.
func NewLiveReader(iface string, snaplen int32, promisc bool, timeout time.Duration) (*Reader, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}

	return &Reader{handle: handle, isLive: true}, nil
}

// Read returns all remaining packets as samples.
func (r *Reader) Read() ([]streamio.Sample, error) {
	if r.handle == nil {
		return nil, errors.New("pcap: reader not initialized")
	}

	var samples []streamio.Sample
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	for packet := range packetSource.Packets() {
		samples = append(samples, r.toSample(packet))
	}

	return samples, nil
}

// Stream returns a channel of samples for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan streamio.Sample, error) {
	if r.handle == nil {
		return nil, errors.New("pcap: reader not initialized")
	}

	out := make(chan streamio.Sample, 1000)
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-packetSource.Packets():
				if !ok {
					return
				}

				select {
				case out <- r.toSample(packet):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.handle != nil {
		r.handle.Close()
	}
	return nil
}

func (r *Reader) toSample(packet gopacket.Packet) streamio.Sample {
	s := streamio.Sample{
		ArrivalOrder: r.next,
		Value:        float64(len(packet.Data())),
	}
	r.next++
	return s
}
