package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

// ErrIndexUnavailable signals that the per-CIK filing index itself could
// not be fetched. Distinct from an empty candidate list, which is not an
// error.
var ErrIndexUnavailable = eris.New("edgar: filing index unavailable")

const (
	defaultSubmissionsBaseURL = "https://data.sec.gov/submissions"
	defaultArchivesBaseURL    = "https://www.sec.gov/Archives/edgar/data"
)

// DefaultFormTypes are the filing types whose narrative sections the
// extractor targets.
var DefaultFormTypes = []string{"10-K", "10-Q"}

// DefaultFilingLimit bounds the candidate list.
const DefaultFilingLimit = 5

// Index discovers recent filings for a resolved CIK.
type Index struct {
	fetch           *fetcher.Client
	submissionsBase string
	archivesBase    string
}

// IndexOption configures the index client.
type IndexOption func(*Index)

// WithSubmissionsBaseURL overrides the submissions feed base URL.
func WithSubmissionsBaseURL(u string) IndexOption {
	return func(i *Index) { i.submissionsBase = u }
}

// WithArchivesBaseURL overrides the document archive base URL.
func WithArchivesBaseURL(u string) IndexOption {
	return func(i *Index) { i.archivesBase = u }
}

// NewIndex creates a filing index client over the shared fetcher.
func NewIndex(fetch *fetcher.Client, opts ...IndexOption) *Index {
	i := &Index{
		fetch:           fetch,
		submissionsBase: defaultSubmissionsBaseURL,
		archivesBase:    defaultArchivesBaseURL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// submissionsDoc mirrors the upstream feed: parallel arrays, most recent
// filing first.
type submissionsDoc struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// RecentFilings returns up to limit recent filings of the requested form
// types (case-insensitive) whose primary document the extractor can read.
// An empty result is a defined outcome, not an error; a failed index fetch
// wraps ErrIndexUnavailable.
func (i *Index) RecentFilings(ctx context.Context, cik string, formTypes []string, limit int) ([]model.Filing, error) {
	if limit <= 0 {
		limit = DefaultFilingLimit
	}

	indexURL := fmt.Sprintf("%s/CIK%s.json", i.submissionsBase, cik)
	body, err := i.fetch.Get(ctx, indexURL, nil, nil)
	if err != nil {
		return nil, eris.Wrapf(ErrIndexUnavailable, "cik %s: %s", cik, err.Error())
	}

	var doc submissionsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrapf(err, "edgar: parse submissions for cik %s", cik)
	}

	wanted := make(map[string]bool, len(formTypes))
	for _, ft := range formTypes {
		wanted[strings.ToUpper(strings.TrimSpace(ft))] = true
	}

	recent := doc.Filings.Recent
	n := len(recent.Form)
	if len(recent.AccessionNumber) < n {
		n = len(recent.AccessionNumber)
	}
	if len(recent.FilingDate) < n {
		n = len(recent.FilingDate)
	}
	if len(recent.PrimaryDocument) < n {
		n = len(recent.PrimaryDocument)
	}

	filings := make([]model.Filing, 0, limit)
	for idx := 0; idx < n && len(filings) < limit; idx++ {
		form := strings.ToUpper(strings.TrimSpace(recent.Form[idx]))
		if len(wanted) > 0 && !wanted[form] {
			continue
		}
		primary := recent.PrimaryDocument[idx]
		if !readableDocument(primary) {
			continue
		}
		filings = append(filings, model.Filing{
			FormType:        form,
			AccessionNumber: recent.AccessionNumber[idx],
			FilingDate:      recent.FilingDate[idx],
			PrimaryDocument: primary,
			DocumentURL:     i.documentURL(cik, recent.AccessionNumber[idx], primary),
		})
	}
	return filings, nil
}

// FetchDocument retrieves a filing's primary document body.
func (i *Index) FetchDocument(ctx context.Context, filing model.Filing) (string, error) {
	body, err := i.fetch.Get(ctx, filing.DocumentURL, nil, nil)
	if err != nil {
		return "", eris.Wrapf(err, "edgar: fetch document %s", filing.PrimaryDocument)
	}
	return string(body), nil
}

// readableDocument reports whether the extractor supports the primary
// document type. Only HTML documents are readable.
func readableDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".htm", ".html":
		return true
	default:
		return false
	}
}

// documentURL resolves the archive URL for a filing's primary document.
// The archive path uses the unpadded CIK and the accession number with
// dashes removed.
func (i *Index) documentURL(cik, accession, primary string) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		i.archivesBase,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accession, "-", ""),
		primary,
	)
}
