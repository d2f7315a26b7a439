// replay - streams recorded or synthetic landmark ticks to a facesense
// server over /ws/ingest and prints the events that come back
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-facesense/internal/httpc"
	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/expression"
	"github.com/teslashibe/go-facesense/pkg/landmark"
	"github.com/teslashibe/go-facesense/pkg/pipeline"
	"github.com/teslashibe/go-facesense/pkg/web"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLine fits one tick of a few full meshes.
const maxLine = 4 * 1024 * 1024

func main() {
	addr := flag.String("addr", "localhost:8080", "facesense server host:port")
	file := flag.String("file", "", "JSONL file with one tick per line (empty plays a synthetic demo)")
	fps := flag.Float64("fps", 30, "Ticks per second")
	flag.Parse()

	log.Init("info")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticks, err := loadTicks(*file)
	if err != nil {
		log.Error("load ticks", "error", err)
		os.Exit(1)
	}

	var th expression.Thresholds
	if err := httpc.GetJSON(ctx, "http://"+*addr+"/api/thresholds", &th); err != nil {
		log.Warn("could not read server thresholds", "error", err)
	} else {
		log.Info("server thresholds", "eye_close", th.EyeClose, "eye_open", th.EyeOpen, "mouth_open", th.MouthOpen)
	}

	if err := replay(ctx, "ws://"+*addr+"/ws/ingest", ticks, *fps); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func loadTicks(path string) ([]pipeline.Tick, error) {
	if path == "" {
		return demoTicks(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTicks(f)
}

// readTicks parses JSONL ticks, skipping blank lines.
func readTicks(r io.Reader) ([]pipeline.Tick, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var ticks []pipeline.Tick
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var t pipeline.Tick
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, t)
	}
	return ticks, sc.Err()
}

// demoTicks is two blinks, a mouth open and a head turn on one face.
func demoTicks() []pipeline.Tick {
	shapes := []landmark.Shape{}
	hold := func(s landmark.Shape, n int) {
		for i := 0; i < n; i++ {
			shapes = append(shapes, s)
		}
	}

	open := landmark.Shape{EyeRatio: 0.25, MouthRatio: 0.1}
	closed := landmark.Shape{EyeRatio: 0.05, MouthRatio: 0.1}
	half := landmark.Shape{EyeRatio: 0.1, MouthRatio: 0.1}
	mouth := landmark.Shape{EyeRatio: 0.25, MouthRatio: 0.45}
	turned := landmark.Shape{EyeRatio: 0.25, MouthRatio: 0.1, NoseShiftX: 0.03}

	hold(open, 10)
	hold(closed, 4)
	hold(half, 3) // dead zone, no event
	hold(open, 10)
	hold(closed, 4)
	hold(open, 10)
	hold(mouth, 8)
	hold(open, 5)
	hold(turned, 10)

	ticks := make([]pipeline.Tick, len(shapes))
	for i, s := range shapes {
		ticks[i] = pipeline.Tick{
			Seq:   uint64(i),
			Faces: []pipeline.Face{{Subject: "demo", Landmarks: landmark.Synthesize(s)}},
		}
	}
	return ticks
}

func replay(ctx context.Context, url string, ticks []pipeline.Tick, fps float64) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	var hello struct {
		Session string `json:"session"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	log.Info("replay connected", "session", hello.Session, "ticks", len(ticks))

	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	var last web.FramesResponse
	for _, t := range ticks {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := conn.WriteJSON(t); err != nil {
			return fmt.Errorf("send tick %d: %w", t.Seq, err)
		}
		var out web.FramesResponse
		if err := conn.ReadJSON(&out); err != nil {
			return fmt.Errorf("read result %d: %w", t.Seq, err)
		}
		for _, e := range out.Errors {
			log.Warn("face skipped", "seq", t.Seq, "error", e)
		}
		for _, f := range out.Faces {
			for _, ev := range f.Events {
				log.Info("event",
					"seq", out.Seq,
					"subject", f.Subject,
					"event", ev.String(),
					"ear", fmt.Sprintf("%.3f", f.Sample.EAR),
					"mar", fmt.Sprintf("%.3f", f.Sample.MAR),
					"yaw", fmt.Sprintf("%.1f", f.Sample.Pose.Yaw),
				)
			}
		}
		last = out
	}

	for _, f := range last.Faces {
		fmt.Printf("%s: blinks=%d eye_opens=%d mouth_opens=%d\n",
			f.Subject, f.Counts.EyeCloseCount, f.Counts.EyeOpenCount, f.Counts.MouthOpenCount)
	}
	return nil
}
