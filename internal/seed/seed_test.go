package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/models"
)

type fakeAdder struct {
	seen  map[string]bool
	calls []string
}

func (f *fakeAdder) AddItem(_ context.Context, name string, appID int) (*models.Item, error) {
	f.calls = append(f.calls, name)
	switch {
	case name == "" || appID <= 0:
		return nil, errs.New(errs.KindInvalid, "market hash name and app id are required")
	case name == "Broken":
		return nil, errors.New("database is locked")
	case f.seen[name]:
		return nil, errs.New(errs.KindConflict, "already tracked")
	}
	f.seen[name] = true
	return &models.Item{ID: uint64(len(f.seen)), MarketHashName: name, SteamAppID: appID}, nil
}

const doc = `
items:
  - market_hash_name: "AK-47 | Redline (Field-Tested)"
    steam_appid: 730
  - market_hash_name: "Mann Co. Supply Crate Key"
    steam_appid: 440
  - market_hash_name: "AK-47 | Redline (Field-Tested)"
    steam_appid: 730
  - market_hash_name: ""
    steam_appid: 730
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Items) != 4 || f.Items[1].SteamAppID != 440 {
		t.Fatalf("unexpected items %+v", f.Items)
	}

	if _, err := Parse(strings.NewReader("items:\n  - name: x\n")); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
	if f, err := Parse(strings.NewReader("")); err != nil || len(f.Items) != 0 {
		t.Fatalf("expected empty file to parse, got %v", err)
	}
}

func TestApply(t *testing.T) {
	f, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	adder := &fakeAdder{seen: map[string]bool{}}

	res, err := Apply(context.Background(), adder, f)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Added != 2 || res.Existing != 1 || len(res.Rejected) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(adder.calls) != 4 {
		t.Fatalf("expected every entry to be attempted, got %v", adder.calls)
	}
}

func TestApplyStopsOnHardFailure(t *testing.T) {
	f := &File{Items: []Entry{{"Broken", 730}, {"Later", 730}}}
	adder := &fakeAdder{seen: map[string]bool{}}
	if _, err := Apply(context.Background(), adder, f); err == nil {
		t.Fatalf("expected error")
	}
	if len(adder.calls) != 1 {
		t.Fatalf("expected seed to stop, got calls %v", adder.calls)
	}
}
