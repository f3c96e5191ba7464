package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
)

// MJPEGOutput streams processed frames as Motion JPEG over HTTP. It also
// implements osd.Sink: regions sent by the hardware draw path are
// composited in software before encoding, so both draw paths can be
// previewed the same way.
type MJPEGOutput struct {
	config  Config
	palette osd.Palette
	running bool
	mu      sync.RWMutex

	// OSD regions by id
	regionsMu sync.RWMutex
	regions   map[int]*osd.Region

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount atomic.Uint64
	lastUpdate atomic.Int64
	startTime  time.Time
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 80
	}
	return &MJPEGOutput{
		config:  config,
		palette: osd.DefaultPalette,
		regions: make(map[int]*osd.Region),
		clients: make(map[chan []byte]struct{}),
	}
}

// Start initializes the MJPEG output
// Note: The HTTP handler is registered separately via GetHTTPHandler()
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount.Store(0)

	logger.WithComponent("output").Info().
		Int("width", m.config.Width).
		Int("height", m.config.Height).
		Int("fps", m.config.FPS).
		Msg("MJPEG output started")
	return nil
}

// Stop cleanly shuts down the output
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	// Close all client connections
	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("output").Info().
		Uint64("frames", m.frameCount.Load()).
		Msg("MJPEG output stopped")
	return nil
}

// ChangeRegion implements osd.Sink
func (m *MJPEGOutput) ChangeRegion(payload []byte) error {
	var region osd.Region
	if err := region.UnmarshalBinary(payload); err != nil {
		return fmt.Errorf("decode osd region: %w", err)
	}

	m.regionsMu.Lock()
	if region.Enable {
		m.regions[region.RegionID] = &region
	} else {
		delete(m.regions, region.RegionID)
	}
	m.regionsMu.Unlock()
	return nil
}

// Regions returns the visible OSD regions ordered by id
func (m *MJPEGOutput) Regions() []*osd.Region {
	m.regionsMu.RLock()
	defer m.regionsMu.RUnlock()

	out := make([]*osd.Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

// WriteFrame encodes the frame, with OSD regions composited, and sends it
// to all connected clients
func (m *MJPEGOutput) WriteFrame(buf *media.ImageBuffer) error {
	if !m.IsRunning() {
		return fmt.Errorf("MJPEG output not running")
	}

	m.frameCount.Add(1)
	m.lastUpdate.Store(time.Now().UnixNano())

	m.clientsMu.RLock()
	clientCount := len(m.clients)
	m.clientsMu.RUnlock()
	if clientCount == 0 {
		return nil
	}

	jpegData, err := m.Encode(buf)
	if err != nil {
		return err
	}

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	m.clientsMu.RUnlock()
	return nil
}

// Encode converts buf to JPEG with the current regions applied
func (m *MJPEGOutput) Encode(buf *media.ImageBuffer) ([]byte, error) {
	img, err := ToRGBA(buf)
	if err != nil {
		return nil, err
	}
	for _, region := range m.Regions() {
		Composite(img, region, m.palette)
	}

	out := new(bytes.Buffer)
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: m.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return out.Bytes(), nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetHTTPHandler returns an http.Handler for the MJPEG stream
// Mount this at /stream or similar endpoint
func (m *MJPEGOutput) GetHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		log := logger.WithComponent("output")
		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log.Info().Int("clients", clientCount).Msg("MJPEG client connected")

		defer func() {
			m.clientsMu.Lock()
			if _, ok := m.clients[frameChan]; ok {
				delete(m.clients, frameChan)
			}
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("MJPEG client disconnected")
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
					return
				}
				if _, err := w.Write(jpegData); err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
	}
}

// Stats is a snapshot of output counters
type Stats struct {
	Running    bool      `json:"running"`
	Frames     uint64    `json:"frames"`
	Clients    int       `json:"clients"`
	Regions    int       `json:"regions"`
	LastUpdate time.Time `json:"last_update"`
	Uptime     string    `json:"uptime"`
}

// Stats returns the current counters
func (m *MJPEGOutput) Stats() Stats {
	m.clientsMu.RLock()
	clients := len(m.clients)
	m.clientsMu.RUnlock()

	m.mu.RLock()
	running, start := m.running, m.startTime
	m.mu.RUnlock()

	s := Stats{
		Running: running,
		Frames:  m.frameCount.Load(),
		Clients: clients,
		Regions: len(m.Regions()),
	}
	if ns := m.lastUpdate.Load(); ns != 0 {
		s.LastUpdate = time.Unix(0, ns)
	}
	if !start.IsZero() {
		s.Uptime = time.Since(start).Round(time.Second).String()
	}
	return s
}

// GetStatsHandler returns an HTTP handler that reports Stats as JSON
func (m *MJPEGOutput) GetStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Stats())
	}
}
