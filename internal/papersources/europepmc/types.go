// Package europepmc implements the Europe PMC source adapter over the
// REST search endpoint with resultType=core and cursorMark pagination.
//
// API documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse represents the top-level Europe PMC search API response.
type SearchResponse struct {
	HitCount       int        `json:"hitCount"`
	NextCursorMark string     `json:"nextCursorMark"`
	ResultList     ResultList `json:"resultList"`
}

// ResultList wraps the array of article results.
type ResultList struct {
	Result []Article `json:"result"`
}

// Article is a single core result; it is the RawRecord payload of this source.
type Article struct {
	ID                   string        `json:"id"`
	Source               string        `json:"source"` // "MED", "PMC", "PPR", ...
	PMID                 string        `json:"pmid"`
	PMCID                string        `json:"pmcid"`
	DOI                  string        `json:"doi"`
	Title                string        `json:"title"`
	AuthorString         string        `json:"authorString"` // "Smith J, Doe A."
	AuthorList           *AuthorList   `json:"authorList,omitempty"`
	JournalTitle         string        `json:"journalTitle"`
	JournalInfo          *JournalInfo  `json:"journalInfo,omitempty"`
	PubYear              string        `json:"pubYear"`
	AbstractText         string        `json:"abstractText"`
	FirstPublicationDate string        `json:"firstPublicationDate"` // "2024-01-15"
	MeshHeadingList      *MeshHeadings `json:"meshHeadingList,omitempty"`
	KeywordList          *KeywordList  `json:"keywordList,omitempty"`
	FullTextURLList      *FullTextURLs `json:"fullTextUrlList,omitempty"`
	PubTypeList          *PubTypeList  `json:"pubTypeList,omitempty"`
}

type AuthorList struct {
	Author []Author `json:"author"`
}

type Author struct {
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Initials  string `json:"initials"`
}

type JournalInfo struct {
	Journal struct {
		Title           string `json:"title"`
		ISOAbbreviation string `json:"isoabbreviation"`
	} `json:"journal"`
	PrintPublicationDate string `json:"printPublicationDate"`
}

type MeshHeadings struct {
	MeshHeading []struct {
		DescriptorName string `json:"descriptorName"`
	} `json:"meshHeading"`
}

type KeywordList struct {
	Keyword []string `json:"keyword"`
}

type FullTextURLs struct {
	FullTextURL []FullTextURL `json:"fullTextUrl"`
}

type FullTextURL struct {
	Availability  string `json:"availability"`
	DocumentStyle string `json:"documentStyle"`
	Site          string `json:"site"`
	URL           string `json:"url"`
}

type PubTypeList struct {
	PubType []string `json:"pubType"`
}
