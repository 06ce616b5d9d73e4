package server

import (
	"sync"
	"time"

	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/report"
	"github.com/woozymasta/masterstat/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to answer HTTP requests and poll masters in the background.
type Server struct {
	// client runs master queries for live requests and the poller.
	client *masterstat.Client

	// storage keeps query history. It can be nil when history is disabled.
	storage *storage.Repository

	// geoip resolves countries for ?country=1 requests. It can be nil.
	geoip report.CountryLookup

	// shutdown is closed to stop the poller.
	shutdown chan struct{}

	// authToken protects history endpoints; empty disables them.
	authToken string

	// masters queried when a request does not name any.
	masters []string

	// configured is the set of masters; anonymous ?master= overrides must be in it.
	configured map[string]struct{}

	// wg waits for the poller on shutdown.
	wg sync.WaitGroup

	// pollInterval between background runs, zero disables polling.
	pollInterval time.Duration

	// hardLimitCount requests per IP allowed within hardLimitWin.
	hardLimitCount int
	hardLimitWin   time.Duration

	// trustProxy enables X-Forwarded-For and CF-Connecting-IP.
	trustProxy bool

	// skipUnchanged drops polled runs whose server set did not change.
	skipUnchanged bool
}
