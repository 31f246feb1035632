// Package alert synthesizes and plays the audible alert: a burst of short
// random-pitch beeps, in the spirit of a Geiger counter, so a glance away
// from the screen still tells you something changed.
package alert

import (
	"errors"
	"math/rand/v2"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"chime/internal/logging"
)

// Volume has three discrete levels mapped to synth amplitudes.
type Volume int

const (
	VolumeSmall Volume = iota
	VolumeMedium
	VolumeLarge
)

func (volume Volume) amplitude() float64 {
	switch volume {
	case VolumeSmall:
		return 0.08
	case VolumeLarge:
		return 0.4
	default:
		return 0.2
	}
}

func (volume Volume) String() string {
	switch volume {
	case VolumeSmall:
		return "small"
	case VolumeLarge:
		return "large"
	default:
		return "medium"
	}
}

// ParseVolume accepts the three level names, defaulting unknown input to
// medium with ok=false.
func ParseVolume(value string) (Volume, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "small":
		return VolumeSmall, true
	case "medium", "":
		return VolumeMedium, true
	case "large":
		return VolumeLarge, true
	default:
		return VolumeMedium, false
	}
}

const (
	burstDuration = 10 * time.Second
	beepDuration  = 50 * time.Millisecond
	minFrequency  = 400
	maxFrequency  = 1600
	minPause      = 200 * time.Millisecond
	maxPause      = time.Second
)

// Player runs at most one beep burst at a time. Play during an active burst
// is a no-op; Stop ends the burst early.
type Player struct {
	mu       sync.Mutex
	playing  bool
	stop     chan struct{}
	volume   Volume
	logger   *logging.Logger
	playback func([]byte) error

	// burst shape; fixed defaults, overridden in tests
	burstFor time.Duration
	pauses   func() time.Duration
}

func NewPlayer(logger *logging.Logger) *Player {
	player := &Player{
		volume:   VolumeMedium,
		logger:   logger,
		burstFor: burstDuration,
	}
	player.playback = player.playWAV
	player.pauses = randomPause
	return player
}

func randomPause() time.Duration {
	return minPause + time.Duration(rand.Int64N(int64(maxPause-minPause)))
}

// Play starts a burst of random-pitch beeps on a background goroutine.
func (player *Player) Play() {
	player.mu.Lock()
	if player.playing {
		player.mu.Unlock()
		return
	}
	player.playing = true
	player.stop = make(chan struct{})
	stop := player.stop
	amplitude := player.volume.amplitude()
	player.mu.Unlock()

	go player.burst(stop, amplitude)
}

func (player *Player) burst(stop chan struct{}, amplitude float64) {
	defer func() {
		player.mu.Lock()
		// A newer burst may own the flag by now; only the current owner
		// clears it.
		if player.stop == stop {
			player.playing = false
		}
		player.mu.Unlock()
	}()

	deadline := time.Now().Add(player.burstFor)
	for time.Now().Before(deadline) {
		select {
		case <-stop:
			return
		default:
		}

		frequency := float64(minFrequency + rand.IntN(maxFrequency-minFrequency))
		wav := wavBytes(synthTone(frequency, beepDuration, amplitude))
		if err := player.playback(wav); err != nil {
			player.logWarn("beep playback failed", err)
			return
		}

		select {
		case <-stop:
			return
		case <-time.After(player.pauses()):
		}
	}
}

// PlaySample plays one fixed preview beep synchronously, for volume changes.
func (player *Player) PlaySample() {
	wav := wavBytes(synthTone(880, 150*time.Millisecond, player.CurrentVolume().amplitude()))
	if err := player.playback(wav); err != nil {
		player.logWarn("sample playback failed", err)
	}
}

// Stop ends an active burst. Safe to call when idle.
func (player *Player) Stop() {
	player.mu.Lock()
	defer player.mu.Unlock()
	if !player.playing {
		return
	}
	player.playing = false
	close(player.stop)
}

// Playing reports whether a burst is in progress.
func (player *Player) Playing() bool {
	player.mu.Lock()
	defer player.mu.Unlock()
	return player.playing
}

func (player *Player) SetVolume(volume Volume) {
	player.mu.Lock()
	defer player.mu.Unlock()
	switch volume {
	case VolumeSmall, VolumeMedium, VolumeLarge:
		player.volume = volume
	}
}

func (player *Player) CurrentVolume() Volume {
	player.mu.Lock()
	defer player.mu.Unlock()
	return player.volume
}

// playWAV hands the rendered clip to the platform audio player. The clip is
// written to a temp file because afplay cannot read from stdin.
func (player *Player) playWAV(wav []byte) error {
	playerPath, err := findPlayerBinary()
	if err != nil {
		return err
	}

	file, err := os.CreateTemp("", "chime-*.wav")
	if err != nil {
		return err
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.Write(wav); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return exec.Command(playerPath, path).Run()
}

var playerCandidates = []string{"afplay", "paplay", "aplay"}

func findPlayerBinary() (string, error) {
	for _, candidate := range playerCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no audio player binary found")
}

func (player *Player) logWarn(message string, err error) {
	if player.logger == nil {
		return
	}
	player.logger.Warn(message, map[string]string{"error": err.Error()})
}
