package domain

import "strings"

// Top-level collections. Study, DataDictionary, Coding and Provenance are reserved names.
const (
	CollectionTerminology    = "Terminology"
	CollectionTable          = "Table"
	CollectionStudy          = "Study"
	CollectionDataDictionary = "DataDictionary"
	CollectionGlobalID       = "GlobalID"
	CollectionCoding         = "Coding"
	CollectionProvenance     = "Provenance"
)

// Sub-collections nested under a resource document.
const (
	SubMappings             = "mappings"
	SubProvenance           = "provenance"
	SubOntoAPIPreference    = "onto_api_preference"
	SubPreferredTerminology = "preferred_terminology"
	SubUserInput            = "user_input"
)

// TerminologySubCollections lists everything filed under Terminology/{id}; deleting a
// terminology purges all of them.
var TerminologySubCollections = []string{
	SubMappings,
	SubProvenance,
	SubOntoAPIPreference,
	SubPreferredTerminology,
	SubUserInput,
}

// SelfTarget addresses the resource itself rather than one of its codes.
const SelfTarget = "self"

// Codes are free text. Document ids may not contain the path separator, and pair keys use
// "|" as a separator, so both are escaped along with the escape character itself.
var (
	storageEscaper   = strings.NewReplacer("%", "%25", "/", "%2F", ":", "%3A", "|", "%7C")
	storageUnescaper = strings.NewReplacer("%2F", "/", "%3A", ":", "%7C", "|", "%25", "%")
)

// StorageCode normalizes a code into a document id. Distinct codes give distinct ids, and
// the result never contains '/', ':' or '|'.
func StorageCode(code string) string {
	return storageEscaper.Replace(code)
}

// DisplayCode reverses StorageCode.
func DisplayCode(storage string) string {
	return storageUnescaper.Replace(storage)
}
