// Package report renders aggregate query results for the command line and the HTTP API.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"text/tabwriter"
	"time"

	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/models"
)

// Output formats accepted by Write.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatSummary = "summary"
)

// CountryLookup resolves an address to an ISO country code. *geoip.Provider satisfies it.
type CountryLookup interface {
	Country(addr netip.Addr) string
}

// Build converts an aggregate into a report. Unless raw is set the combined server list
// is sorted and deduplicated; per-master lists always keep master order. geo may be nil.
func Build(agg masterstat.Aggregate, raw bool, geo CountryLookup) models.QueryReport {
	rep := models.QueryReport{
		Masters:   make([]models.MasterReport, 0, len(agg)),
		Succeeded: agg.Succeeded(),
		Failed:    agg.Failed(),
	}

	var all []masterstat.ServerAddress
	for _, r := range agg {
		mr := models.MasterReport{
			Master:  r.Master,
			Elapsed: r.Elapsed,
			Servers: entries(r.Servers, geo),
		}
		if r.Err != nil {
			mr.Error = r.Err.Error()
		}
		rep.Masters = append(rep.Masters, mr)
		all = append(all, r.Servers...)
	}

	if !raw {
		all = masterstat.SortedUnique(all)
	}
	rep.Servers = entries(all, geo)

	return rep
}

func entries(servers []masterstat.ServerAddress, geo CountryLookup) []models.ServerEntry {
	out := make([]models.ServerEntry, 0, len(servers))
	for _, s := range servers {
		e := models.ServerEntry{Address: s}
		if geo != nil {
			e.Country = geo.Country(s.Addr())
		}
		out = append(out, e)
	}

	return out
}

// Write renders rep to w in the given format.
func Write(w io.Writer, format string, rep models.QueryReport) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)

	case FormatSummary:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, m := range rep.Masters {
			if m.Error != "" {
				_, _ = fmt.Fprintf(tw, "%s\tFAIL\t%s\t%s\n", m.Master, m.Elapsed.Round(time.Millisecond), m.Error)
				continue
			}
			_, _ = fmt.Fprintf(tw, "%s\tOK\t%s\t%d servers\n", m.Master, m.Elapsed.Round(time.Millisecond), len(m.Servers))
		}
		_, _ = fmt.Fprintf(tw, "total\t%d/%d\t\t%d servers\n", rep.Succeeded, rep.Succeeded+rep.Failed, len(rep.Servers))
		return tw.Flush()

	case FormatText, "":
		for _, s := range rep.Servers {
			var err error
			if s.Country != "" {
				_, err = fmt.Fprintf(w, "%s\t%s\n", s.Address, s.Country)
			} else {
				_, err = fmt.Fprintln(w, s.Address)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("unknown output format %q", format)
}
