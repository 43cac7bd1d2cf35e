// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package artifact

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAssignsMonotonicVersions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for want := 1; want <= 3; want++ {
		a := &Artifact{
			Kind:      KindShortHorizon,
			TrainedAt: time.Now().UTC(),
			Params:    json.RawMessage(`{"base":42}`),
		}
		if err := s.Save(a); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if a.Version != want {
			t.Errorf("Save assigned version %d, want %d", a.Version, want)
		}
	}
}

func TestLoadLatestRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	trainedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	saved := &Artifact{
		Kind:              KindLongHorizon,
		TrainedAt:         trainedAt,
		SchemaFingerprint: "abcd1234",
		TrainingSamples:   512,
		Params:            json.RawMessage(`{"hidden":16,"scale":31.5}`),
		Metrics:           json.RawMessage(`{"loss":0.02}`),
	}
	if err := s.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.LoadLatest(KindLongHorizon)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.Version != 1 || !got.TrainedAt.Equal(trainedAt) {
		t.Errorf("round trip lost metadata: %+v", got)
	}
	if got.SchemaFingerprint != "abcd1234" || got.TrainingSamples != 512 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if string(got.Params) != `{"hidden":16,"scale":31.5}` {
		t.Errorf("round trip changed params: %s", got.Params)
	}
}

func TestLoadLatestTracksNewestSave(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for i := 1; i <= 2; i++ {
		a := &Artifact{Kind: KindShortHorizon, Params: json.RawMessage(`{}`)}
		if err := s.Save(a); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	latest, err := s.LoadLatest(KindShortHorizon)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if latest.Version != 2 {
		t.Errorf("latest version = %d, want 2", latest.Version)
	}

	v1, err := s.LoadVersion(KindShortHorizon, 1)
	if err != nil {
		t.Fatalf("LoadVersion(1): %v", err)
	}
	if v1.Version != 1 {
		t.Errorf("LoadVersion(1) returned version %d", v1.Version)
	}
}

func TestLoadMissingKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if _, err := s.LoadLatest("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLatest(missing) err = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadVersion(KindShortHorizon, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadVersion(missing) err = %v, want ErrNotFound", err)
	}
}

func TestKindsAreIndependent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Save(&Artifact{Kind: KindShortHorizon, Params: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(&Artifact{Kind: KindShortHorizon, Params: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}

	a := &Artifact{Kind: KindLongHorizon, Params: json.RawMessage(`{}`)}
	if err := s.Save(a); err != nil {
		t.Fatal(err)
	}
	if a.Version != 1 {
		t.Errorf("long-horizon version = %d, want 1 (kinds must version independently)", a.Version)
	}
}
