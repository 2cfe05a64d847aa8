package dashboard

import (
	"slices"

	"github.com/hongminglow/all-in-dash/internal/models"
)

// Section is a block of the dashboard.
type Section string

const (
	SectionNews    Section = "news"
	SectionPrices  Section = "prices"
	SectionInsight Section = "insight"
	SectionMeme    Section = "meme"
)

// Sections lists every section in display order.
var Sections = []Section{SectionNews, SectionPrices, SectionInsight, SectionMeme}

var sectionContent = map[Section]string{
	SectionNews:    models.ContentMarketNews,
	SectionPrices:  models.ContentCharts,
	SectionInsight: models.ContentSocial,
	SectionMeme:    models.ContentFun,
}

// ContentType returns the preference label that enables s.
func (s Section) ContentType() string {
	return sectionContent[s]
}

// ShouldShow reports whether content of contentType is wanted. No
// preferences means show everything.
func ShouldShow(contentType string, contentTypes []string) bool {
	if len(contentTypes) == 0 {
		return true
	}
	return slices.Contains(contentTypes, contentType)
}

// VisibleSections returns the sections to render, in display order.
func VisibleSections(contentTypes []string) []Section {
	visible := make([]Section, 0, len(Sections))
	for _, s := range Sections {
		if ShouldShow(s.ContentType(), contentTypes) {
			visible = append(visible, s)
		}
	}
	return visible
}
