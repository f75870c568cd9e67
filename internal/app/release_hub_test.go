package app_test

import (
	"testing"

	"prepcuet/internal/app"
	"prepcuet/internal/domain"
)

func TestReleaseHubRoutesByUser(t *testing.T) {
	hub := app.NewReleaseHub()
	mine, cancelMine := hub.Subscribe("u1")
	defer cancelMine()
	theirs, cancelTheirs := hub.Subscribe("u2")
	defer cancelTheirs()

	hub.Publish(domain.ResultRelease{ResultID: "r1", UserID: "u1"})

	if ev := <-mine; ev.ResultID != "r1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case ev := <-theirs:
		t.Fatalf("other user received %+v", ev)
	default:
	}
}

func TestReleaseHubSlowSubscriberKeepsLatest(t *testing.T) {
	hub := app.NewReleaseHub()
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	for i := 0; i < 20; i++ {
		hub.Publish(domain.ResultRelease{ResultID: string(rune('a' + i)), UserID: "u1"})
	}
	var last domain.ResultRelease
	for len(ch) > 0 {
		last = <-ch
	}
	if last.ResultID != string(rune('a'+19)) {
		t.Fatalf("expected newest release to survive, got %q", last.ResultID)
	}
}

func TestReleaseHubCancelUnsubscribes(t *testing.T) {
	hub := app.NewReleaseHub()
	ch, cancel := hub.Subscribe("u1")
	if hub.Subscribers("u1") != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if hub.Subscribers("u1") != 0 {
		t.Fatalf("expected subscriber removed")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}
	hub.Publish(domain.ResultRelease{ResultID: "r1", UserID: "u1"})
}
