// Package pubmed implements the PubMed source adapter on top of the NCBI
// E-utilities API: esearch.fcgi pages through matching PMIDs and
// efetch.fcgi returns the article XML for each page.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import "encoding/xml"

// ESearchResult is the esearch.fcgi response.
type ESearchResult struct {
	XMLName   xml.Name   `xml:"eSearchResult"`
	Count     int        `xml:"Count"`
	RetMax    int        `xml:"RetMax"`
	RetStart  int        `xml:"RetStart"`
	IDList    IDList     `xml:"IdList"`
	ErrorList *ErrorList `xml:"ErrorList,omitempty"`
	// ERROR is set instead of a result for invalid queries.
	ERROR string `xml:"ERROR,omitempty"`
}

// IDList holds the PMIDs of one search page.
type IDList struct {
	IDs []string `xml:"Id"`
}

// ErrorList reports query phrases PubMed could not resolve.
type ErrorList struct {
	PhraseNotFound []string `xml:"PhraseNotFound,omitempty"`
	FieldNotFound  []string `xml:"FieldNotFound,omitempty"`
}

// PubmedArticleSet is the efetch.fcgi response.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle is one article; it is the RawRecord payload of this source.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

type MedlineCitation struct {
	PMID            string           `xml:"PMID"`
	Article         Article          `xml:"Article"`
	MeshHeadingList *MeshHeadingList `xml:"MeshHeadingList,omitempty"`
	KeywordList     []KeywordList    `xml:"KeywordList,omitempty"`
}

type Article struct {
	Journal      Journal       `xml:"Journal"`
	ArticleTitle InnerText     `xml:"ArticleTitle"`
	ELocationIDs []ELocationID `xml:"ELocationID,omitempty"`
	Abstract     *Abstract     `xml:"Abstract,omitempty"`
	AuthorList   *AuthorList   `xml:"AuthorList,omitempty"`
	ArticleDates []ArticleDate `xml:"ArticleDate,omitempty"`
}

// InnerText captures element content including inline markup such as
// <i> or <sup>, which PubMed embeds in titles and abstracts.
type InnerText struct {
	Value string `xml:",innerxml"`
}

type Journal struct {
	Title           string       `xml:"Title,omitempty"`
	ISOAbbreviation string       `xml:"ISOAbbreviation,omitempty"`
	JournalIssue    JournalIssue `xml:"JournalIssue"`
}

type JournalIssue struct {
	Volume  string  `xml:"Volume,omitempty"`
	Issue   string  `xml:"Issue,omitempty"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate is the issue date. It is often partial ("2020", "2020 Mar") or
// free-form in MedlineDate ("2020 Jan-Feb").
type PubDate struct {
	Year        string `xml:"Year,omitempty"`
	Month       string `xml:"Month,omitempty"`
	Day         string `xml:"Day,omitempty"`
	Season      string `xml:"Season,omitempty"`
	MedlineDate string `xml:"MedlineDate,omitempty"`
}

// ArticleDate is the electronic publication date; it is always complete.
type ArticleDate struct {
	DateType string `xml:"DateType,attr,omitempty"`
	Year     string `xml:"Year"`
	Month    string `xml:"Month"`
	Day      string `xml:"Day"`
}

// ELocationID is an electronic locator such as a DOI or PII.
type ELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	ValidYN string `xml:"ValidYN,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Abstract may be split into labelled sections (BACKGROUND, METHODS, ...).
type Abstract struct {
	Texts []AbstractText `xml:"AbstractText"`
}

type AbstractText struct {
	Label string `xml:"Label,attr,omitempty"`
	Value string `xml:",innerxml"`
}

type AuthorList struct {
	Authors []Author `xml:"Author"`
}

type Author struct {
	ValidYN        string `xml:"ValidYN,attr,omitempty"`
	LastName       string `xml:"LastName,omitempty"`
	ForeName       string `xml:"ForeName,omitempty"`
	Initials       string `xml:"Initials,omitempty"`
	CollectiveName string `xml:"CollectiveName,omitempty"`
}

type MeshHeadingList struct {
	Headings []MeshHeading `xml:"MeshHeading"`
}

type MeshHeading struct {
	Descriptor string `xml:"DescriptorName"`
}

type KeywordList struct {
	Keywords []string `xml:"Keyword"`
}

type PubmedData struct {
	ArticleIDList ArticleIDList `xml:"ArticleIdList"`
}

type ArticleIDList struct {
	IDs []ArticleID `xml:"ArticleId"`
}

// ArticleID is an identifier of the article in another namespace
// (pubmed, doi, pmc, pii).
type ArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}
