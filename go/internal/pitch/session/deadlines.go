package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

// placeholder is a speaker's "thinking" entry. It expires on its own if no
// message replaces it.
type placeholder struct {
	since time.Time
	timer clockwork.Timer
}

func (p *placeholder) cancel() {
	if p.timer != nil {
		p.timer.Stop()
	}
}

// indicator marks a speaker as speaking. timer, when set, clears it.
type indicator struct {
	timer clockwork.Timer
}

func (i *indicator) cancel() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

// after runs fn on the controller goroutine once d has elapsed, unless the
// session has been torn down by then.
func (c *Controller) after(d time.Duration, fn func()) clockwork.Timer {
	gen := c.gen
	return c.clock.AfterFunc(d, func() {
		c.postForSession(gen, fn)
	})
}

func (c *Controller) setThinking(speaker string) {
	c.clearThinking(speaker)

	p := &placeholder{since: c.clock.Now()}
	if c.cfg.ThinkingTimeout > 0 {
		p.timer = c.after(c.cfg.ThinkingTimeout, func() {
			// A newer placeholder for the same speaker has its own deadline.
			if c.thinking[speaker] != p {
				return
			}
			delete(c.thinking, speaker)
			log.Debug().Str("speaker", speaker).Msg("thinking placeholder expired")
		})
	}
	c.thinking[speaker] = p
}

func (c *Controller) clearThinking(speaker string) {
	if p, ok := c.thinking[speaker]; ok {
		p.cancel()
		delete(c.thinking, speaker)
	}
}

func (c *Controller) clearAllThinking() {
	for speaker := range c.thinking {
		c.clearThinking(speaker)
	}
}

func (c *Controller) setSpeaking(speaker string) {
	if ind, ok := c.speaking[speaker]; ok {
		ind.cancel()
		return
	}
	c.speaking[speaker] = &indicator{}
}

// clearSpeakingAfter drops the indicator after d unless audio for the speaker
// is still queued or playing at that point.
func (c *Controller) clearSpeakingAfter(speaker string, d time.Duration) {
	ind, ok := c.speaking[speaker]
	if !ok {
		return
	}
	ind.cancel()
	ind.timer = c.after(d, func() {
		if c.speaking[speaker] != ind || c.audioActive[speaker] > 0 {
			return
		}
		delete(c.speaking, speaker)
	})
}

func (c *Controller) clearSpeaking(speaker string) {
	if ind, ok := c.speaking[speaker]; ok {
		ind.cancel()
		delete(c.speaking, speaker)
	}
}

func (c *Controller) onClipStart(clip models.Clip) {
	if clip.SpeakerID == "" {
		return
	}
	c.setSpeaking(clip.SpeakerID)
}

func (c *Controller) onClipFinish(clip models.Clip) {
	if clip.SpeakerID == "" {
		return
	}
	if c.audioActive[clip.SpeakerID] > 0 {
		c.audioActive[clip.SpeakerID]--
	}
	if c.audioActive[clip.SpeakerID] == 0 {
		delete(c.audioActive, clip.SpeakerID)
		c.clearSpeaking(clip.SpeakerID)
	}
}
