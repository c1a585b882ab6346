// Package seed registers a list of items from a YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/models"

	"gopkg.in/yaml.v3"
)

type Entry struct {
	MarketHashName string `yaml:"market_hash_name"`
	SteamAppID     int    `yaml:"steam_appid"`
}

// File is the seed document:
//
//	items:
//	  - market_hash_name: "AK-47 | Redline (Field-Tested)"
//	    steam_appid: 730
type File struct {
	Items []Entry `yaml:"items"`
}

// Adder is implemented by *tracker.Service.
type Adder interface {
	AddItem(ctx context.Context, marketHashName string, appID int) (*models.Item, error)
}

type Result struct {
	Added    int
	Existing int
	Rejected []string
}

func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply adds every entry. Already tracked and rejected items are reported, not fatal; any
// other error stops the seed.
func Apply(ctx context.Context, adder Adder, f *File) (Result, error) {
	var res Result
	for i, e := range f.Items {
		name := strings.TrimSpace(e.MarketHashName)
		item, err := adder.AddItem(ctx, name, e.SteamAppID)
		switch {
		case err == nil:
			res.Added++
			logger.Info("[seed] [%d/%d] ✓ %s (id=%d)", i+1, len(f.Items), item.MarketHashName, item.ID)
		case errs.Is(err, errs.KindConflict):
			res.Existing++
			logger.Info("[seed] [%d/%d] = %s already tracked", i+1, len(f.Items), name)
		case errs.Is(err, errs.KindInvalid):
			res.Rejected = append(res.Rejected, fmt.Sprintf("%s: %s", name, errs.Message(err)))
			logger.Warn("[seed] [%d/%d] ✗ %s: %s", i+1, len(f.Items), name, errs.Message(err))
		default:
			return res, fmt.Errorf("seed %q: %w", name, err)
		}
	}
	return res, nil
}
