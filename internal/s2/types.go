// Package s2 provides a rate-limited client for the Semantic Scholar
// Academic Graph API and maps its papers to records.
package s2

// Paper represents a paper from the Semantic Scholar API.
type Paper struct {
	PaperID          string            `json:"paperId"`
	ExternalIDs      ExternalIDs       `json:"externalIds,omitempty"`
	Title            string            `json:"title"`
	Abstract         string            `json:"abstract,omitempty"`
	Authors          []Author          `json:"authors,omitempty"`
	Year             int               `json:"year,omitempty"`
	Venue            string            `json:"venue,omitempty"`
	PublicationVenue *PublicationVenue `json:"publicationVenue,omitempty"`
	PubDate          string            `json:"publicationDate,omitempty"` // YYYY-MM-DD format
	PublicationTypes []string          `json:"publicationTypes,omitempty"`
	Journal          *Journal          `json:"journal,omitempty"`
	Citations        int               `json:"citationCount,omitempty"`
	URL              string            `json:"url,omitempty"`
	OpenAccessPDF    *OpenAccessPDF    `json:"openAccessPdf,omitempty"`
}

// ExternalIDs contains various external identifiers for a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
	CorpusID      int    `json:"CorpusId,omitempty"`
}

// Author represents an author from the Semantic Scholar API.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// PublicationVenue describes where a paper appeared.
type PublicationVenue struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"` // journal, conference
}

// Journal carries journal-level bibliographic details.
type Journal struct {
	Name   string `json:"name,omitempty"`
	Volume string `json:"volume,omitempty"`
	Pages  string `json:"pages,omitempty"`
}

// OpenAccessPDF points to a freely available PDF.
type OpenAccessPDF struct {
	URL string `json:"url"`
}

// PaperIdentifier represents a parsed paper identifier.
type PaperIdentifier struct {
	Type  string // DOI, ARXIV, PMID, PMCID, CorpusId, S2, URL
	Value string // The identifier value
}

// String returns the S2 API format for the identifier.
func (p PaperIdentifier) String() string {
	switch p.Type {
	case "S2":
		return p.Value // Raw S2 ID doesn't need prefix
	default:
		return p.Type + ":" + p.Value
	}
}

// SearchResponse is the response from the paper search endpoint.
type SearchResponse struct {
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Next   int     `json:"next,omitempty"`
	Data   []Paper `json:"data"`
}
