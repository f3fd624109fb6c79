// cisynth-feed streams synthetic scan lines to a running engine as fragment
// packets, standing in for the sensor during bring-up.
package main

import (
	"flag"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/ondulab/cisynth/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:55151", "Engine UDP address")
	rate := flag.Int("rate", 200, "Lines per second")
	pattern := flag.String("pattern", "sweep", "Test pattern: sweep, bars, white, black")
	count := flag.Int("count", 0, "Number of lines to send (0 = until interrupted)")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	r := make([]byte, protocol.PixelsPerLine)
	g := make([]byte, protocol.PixelsPerLine)
	b := make([]byte, protocol.PixelsPerLine)

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lineID, packetID uint32
	for *count == 0 || int(lineID) < *count {
		<-ticker.C
		fillPattern(*pattern, int(lineID), r, g, b)

		for frag := uint32(0); frag < protocol.FragmentsPerLine; frag++ {
			off := int(frag) * protocol.FragmentSize
			pkt := protocol.FragmentPacket{
				Tag:            protocol.TagImageData,
				PacketID:       packetID,
				LineID:         lineID,
				FragmentID:     frag,
				TotalFragments: protocol.FragmentsPerLine,
				FragmentSize:   protocol.FragmentSize,
				Red:            r[off : off+protocol.FragmentSize],
				Green:          g[off : off+protocol.FragmentSize],
				Blue:           b[off : off+protocol.FragmentSize],
			}
			data, err := pkt.Encode()
			if err != nil {
				fmt.Fprintf(os.Stderr, "encode: %v\n", err)
				os.Exit(1)
			}
			if _, err := conn.Write(data); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				os.Exit(1)
			}
			packetID++
		}
		lineID++
	}
}

// fillPattern renders one synthetic line.
func fillPattern(name string, line int, r, g, b []byte) {
	switch name {
	case "white":
		for i := range r {
			r[i], g[i], b[i] = 255, 255, 255
		}

	case "black":
		for i := range r {
			r[i], g[i], b[i] = 0, 0, 0
		}

	case "bars":
		for i := range r {
			if (i/288)%2 == 0 {
				r[i], g[i], b[i] = 255, 0, 0
			} else {
				r[i], g[i], b[i] = 0, 0, 255
			}
		}

	default: // sweep: a dark band orbiting the line over a white field
		center := (line * 16) % len(r)
		for i := range r {
			d := math.Abs(float64(i - center))
			if d > float64(len(r))/2 {
				d = float64(len(r)) - d
			}
			v := byte(255)
			if d < 200 {
				v = byte(55 + d)
			}
			r[i], g[i], b[i] = v, v, v
		}
	}
}
