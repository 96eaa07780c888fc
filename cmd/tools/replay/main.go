// Command replay reads a recorded event WAL, optionally injects chaos
// (drops, duplicates, reordering), and reconstructs the signed position
// from the fill stream, verifying it against an expected value. Used to
// validate that the recorded history and the live ledgers agree.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/chaos"
	"marketmaker/internal/codec"
	"marketmaker/internal/recorder"
	"marketmaker/internal/schema"
)

func main() {
	dir := flag.String("wal-dir", "testdata/wal", "WAL directory to replay")
	prefix := flag.String("prefix", "", "WAL file prefix (default: wal)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	priceScale := flag.Int("price-scale", 8, "Price scale of the recorded stream")
	qtyScale := flag.Int("qty-scale", 8, "Quantity scale of the recorded stream")
	expectPosition := flag.String("expect-position", "", "Verify the final base position equals this decimal")

	chaosDrop := flag.Float64("chaos-drop", 0, "Chaos: drop rate 0..1")
	chaosDup := flag.Float64("chaos-dup", 0, "Chaos: duplicate rate 0..1")
	chaosReorder := flag.Int("chaos-reorder", 1, "Chaos: reorder window (1=off)")
	chaosSeed := flag.Int64("chaos-seed", 0, "Chaos: RNG seed (0=time-based)")
	flag.Parse()

	scale := schema.ScaleSpec{
		PriceScale:    schema.Scale(*priceScale),
		QuantityScale: schema.Scale(*qtyScale),
	}

	var chaosEngine *chaos.Engine
	if *chaosDrop > 0 || *chaosDup > 0 || *chaosReorder > 1 {
		var err error
		chaosEngine, err = chaos.NewEngine(chaos.Config{
			Seed:          *chaosSeed,
			DropRate:      *chaosDrop,
			DuplicateRate: *chaosDup,
			ReorderWindow: *chaosReorder,
		})
		if err != nil {
			log.Fatalf("chaos config invalid: %v", err)
		}
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		UseRecvTime:     *useRecv,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	counts := make(map[schema.EventType]int)
	total := 0
	position := decimal.NewFromInt(0)
	volume := decimal.NewFromInt(0)

	apply := func(header schema.EventHeader, payload []byte) {
		total++
		counts[header.Type]++
		if header.Type != schema.EventFill {
			return
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			log.Fatalf("decode fill failed at seq=%d", header.Seq)
		}
		qty := scale.QuantityToDecimal(fill.Qty)
		price := scale.PriceToDecimal(fill.Price)
		switch fill.Side {
		case schema.OrderSideBuy:
			position = position.Add(qty)
		case schema.OrderSideSell:
			position = position.Sub(qty)
		}
		volume = volume.Add(qty.Mul(price))
	}

	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		if chaosEngine == nil {
			apply(header, payload)
			return nil
		}
		copied := make([]byte, len(payload))
		copy(copied, payload)
		for _, ev := range chaosEngine.Process(chaos.Event{Header: header, Payload: copied}) {
			apply(ev.Header, ev.Payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if chaosEngine != nil {
		for _, ev := range chaosEngine.Flush() {
			apply(ev.Header, ev.Payload)
		}
	}

	log.Printf("replay completed: total=%d counts=%v position=%s volume_usd=%s",
		total, counts, position, volume)

	if *expectPosition != "" {
		expected, err := decimal.NewFromString(*expectPosition)
		if err != nil {
			log.Fatalf("bad -expect-position: %v", err)
		}
		if !position.Equal(expected) {
			log.Fatalf("position mismatch: replayed=%s expected=%s", position, expected)
		}
		log.Printf("position verified: %s", position)
	}
}
