package domain

import "time"

// PublicationEvent announces a committed publication to downstream consumers.
// It is emitted only after the manifest has been written.
type PublicationEvent struct {
	Collection    string    `json:"collection"`
	Parameter     string    `json:"parameter"`
	Target        string    `json:"target"`
	ManifestKey   string    `json:"manifest_key"`
	ManifestURL   string    `json:"manifest_url,omitempty"`
	Bands         int       `json:"bands"`
	FirstForecast time.Time `json:"first_forecast"`
	LastForecast  time.Time `json:"last_forecast"`
	PublishedAt   time.Time `json:"published_at"`
}

// NewPublicationEvent summarizes a completed publication. bands must be in
// ascending time order.
func NewPublicationEvent(target PublicationTarget, bands []PublishedBand, manifestURL string) PublicationEvent {
	ev := PublicationEvent{
		Collection:  target.Collection,
		Parameter:   target.Parameter,
		Target:      target.String(),
		ManifestKey: target.ManifestKey(),
		ManifestURL: manifestURL,
		Bands:       len(bands),
		PublishedAt: Now(),
	}
	if len(bands) > 0 {
		ev.FirstForecast = bands[0].Time.UTC()
		ev.LastForecast = bands[len(bands)-1].Time.UTC()
	}
	return ev
}

// EventKey is the message key of a publication event.
func (e PublicationEvent) EventKey() string {
	return e.Collection + "/" + e.Parameter
}
