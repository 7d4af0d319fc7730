// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ipapi

import (
	"errors"
	"log/slog"
	stdhttp "net/http"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/geo-loc/internal/http"
	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
	"github.com/wneessen/geo-loc/internal/testhelper"
)

const (
	testLat = 37.3349
	testLon = -122.009
)

func newMockProvider(t *testing.T, fn func(*stdhttp.Request) (*stdhttp.Response, error)) *Provider {
	t.Helper()
	client := http.New(logger.New(slog.LevelInfo))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	provider, err := New(client, "", nil)
	if err != nil {
		t.Fatalf("failed to create IP provider: %s", err)
	}
	return provider
}

func TestNew(t *testing.T) {
	t.Run("new IP provider succeeds", func(t *testing.T) {
		provider, err := New(http.New(nil), "", nil)
		if err != nil {
			t.Fatalf("failed to create IP provider: %s", err)
		}
		if provider.endpoint != DefaultEndpoint {
			t.Errorf("expected endpoint to be %s, got %s", DefaultEndpoint, provider.endpoint)
		}
		if provider.Name() != location.TagIP {
			t.Errorf("expected provider name to be %s, got %s", location.TagIP, provider.Name())
		}
	})
	t.Run("custom endpoint is kept", func(t *testing.T) {
		provider, err := New(http.New(nil), "https://example.com/json", nil)
		if err != nil {
			t.Fatalf("failed to create IP provider: %s", err)
		}
		if provider.endpoint != "https://example.com/json" {
			t.Errorf("expected custom endpoint, got %s", provider.endpoint)
		}
	})
	t.Run("IP provider without http client fails", func(t *testing.T) {
		provider, err := New(nil, "", nil)
		if err == nil {
			t.Fatal("expected provider to fail")
		}
		if provider != nil {
			t.Fatal("expected provider to be nil")
		}
	})
}

func TestProvider_Locate(t *testing.T) {
	t.Run("locate succeeds", func(t *testing.T) {
		observed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		var requested string
		provider := newMockProvider(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			requested = req.URL.String()
			return testhelper.FileResponse(t, "../../../../testdata/ipapi.json"), nil
		})
		provider.now = func() time.Time { return observed }

		fix, err := provider.Locate(t.Context(), time.Second)
		if err != nil {
			t.Fatalf("failed to locate via IP: %s", err)
		}
		if requested != DefaultEndpoint {
			t.Errorf("expected request to %s, got %s", DefaultEndpoint, requested)
		}
		if fix.Latitude != testLat || fix.Longitude != testLon {
			t.Errorf("expected %f,%f, got %f,%f", testLat, testLon, fix.Latitude, fix.Longitude)
		}
		if fix.HasAccuracy() {
			t.Error("expected accuracy to be absent")
		}
		if fix.Provider != location.TagIP {
			t.Errorf("expected provider to be %s, got %s", location.TagIP, fix.Provider)
		}
		if !fix.ObservedAt.Equal(observed) {
			t.Errorf("expected observation time %s, got %s", observed, fix.ObservedAt)
		}
	})
	t.Run("zero coordinates are a valid fix", func(t *testing.T) {
		provider := newMockProvider(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return testhelper.FileResponse(t, "../../../../testdata/ipapi_zero.json"), nil
		})
		fix, err := provider.Locate(t.Context(), time.Second)
		if err != nil {
			t.Fatalf("failed to locate via IP: %s", err)
		}
		if fix.Latitude != 0 || fix.Longitude != 0 {
			t.Errorf("expected 0,0, got %f,%f", fix.Latitude, fix.Longitude)
		}
	})
	t.Run("locate fails with a network error", func(t *testing.T) {
		tests := []struct {
			name string
			fn   func(*stdhttp.Request) (*stdhttp.Response, error)
		}{
			{"transport failure", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return nil, errors.New("intentionally failing")
			}},
			{"failed lookup", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return testhelper.FileResponse(t, "../../../../testdata/ipapi_fail.json"), nil
			}},
			{"missing latitude", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return testhelper.FileResponse(t, "../../../../testdata/ipapi_nolat.json"), nil
			}},
			{"latitude is not a number", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return testhelper.FileResponse(t, "../../../../testdata/ipapi_badlat.json"), nil
			}},
			{"latitude out of range", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return testhelper.FileResponse(t, "../../../../testdata/ipapi_range.json"), nil
			}},
			{"broken JSON", func(*stdhttp.Request) (*stdhttp.Response, error) {
				return testhelper.JSONResponse(`{"lat":`), nil
			}},
			{"server error", func(*stdhttp.Request) (*stdhttp.Response, error) {
				resp := testhelper.JSONResponse(`{}`)
				resp.StatusCode = stdhttp.StatusInternalServerError
				return resp, nil
			}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := newMockProvider(t, tc.fn).Locate(t.Context(), time.Second)
				if !errors.Is(err, location.ErrNetwork) {
					t.Errorf("expected error to be %s, got %v", location.ErrNetwork, err)
				}
			})
		}
	})
	t.Run("the lookup message is kept", func(t *testing.T) {
		provider := newMockProvider(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return testhelper.FileResponse(t, "../../../../testdata/ipapi_fail.json"), nil
		})
		_, err := provider.Locate(t.Context(), time.Second)
		var locErr *location.Error
		if !errors.As(err, &locErr) || locErr.Reason != "reserved range" {
			t.Errorf("expected reason to be %q, got %v", "reserved range", err)
		}
	})
	t.Run("coordinates are truncated to four decimals", func(t *testing.T) {
		provider := newMockProvider(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return testhelper.JSONResponse(`{"status":"success","lat":37.334912,"lon":-122.009087}`), nil
		})
		fix, err := provider.Locate(t.Context(), time.Second)
		if err != nil {
			t.Fatalf("failed to locate via IP: %s", err)
		}
		if fix.Latitude != testLat || fix.Longitude != testLon {
			t.Errorf("expected %f,%f, got %f,%f", testLat, testLon, fix.Latitude, fix.Longitude)
		}
	})
	t.Run("timeouts above the client default are honoured", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			provider := newMockProvider(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
				select {
				case <-time.After(time.Second * 12):
					return testhelper.FileResponse(t, "../../../../testdata/ipapi.json"), nil
				case <-req.Context().Done():
					return nil, req.Context().Err()
				}
			})
			start := time.Now()
			fix, err := provider.Locate(t.Context(), time.Second*15)
			if err != nil {
				t.Fatalf("failed to locate via IP: %s", err)
			}
			if elapsed := time.Since(start); elapsed != time.Second*12 {
				t.Errorf("expected lookup to finish after 12s, took %s", elapsed)
			}
			if fix.Latitude != testLat {
				t.Errorf("expected latitude %f, got %f", testLat, fix.Latitude)
			}
		})
	})
	t.Run("locate honours the timeout", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			calls := 0
			provider := newMockProvider(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
				calls++
				<-req.Context().Done()
				return nil, req.Context().Err()
			})
			start := time.Now()
			_, err := provider.Locate(t.Context(), time.Second*2)
			if !errors.Is(err, location.ErrNetwork) {
				t.Fatalf("expected error to be %s, got %v", location.ErrNetwork, err)
			}
			if elapsed := time.Since(start); elapsed != time.Second*2 {
				t.Errorf("expected lookup to give up after 2s, took %s", elapsed)
			}
			if calls != 1 {
				t.Errorf("expected exactly one request, got %d", calls)
			}
		})
	})
}

func TestProvider_Locate_integration(t *testing.T) {
	testhelper.PerformIntegrationTests(t)
	provider, err := New(http.New(nil), testhelper.TestOnlineAPIURL, nil)
	if err != nil {
		t.Fatalf("failed to create IP provider: %s", err)
	}
	fix, err := provider.Locate(t.Context(), time.Second*10)
	if err != nil {
		t.Fatalf("failed to locate via IP: %s", err)
	}
	if err = fix.Validate(); err != nil {
		t.Errorf("expected a valid fix, got %s", err)
	}
}
