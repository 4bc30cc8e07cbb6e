// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"fmt"
	"strings"

	"github.com/leseb/flowbot/pkg/core/markup"
)

const noContent = "[No content available]"

// Store is a store record pulled out of an index document.
type Store struct {
	Name           string
	ID             string
	Address        string
	City           string
	State          string
	Leader         string
	LeaderEmail    string
	DistrictName   string
	DistrictLeader string
	RegionName     string
	RegionLeader   string
	AreaName       string
	AreaLeader     string
	Hours          [7]string // Monday first
	AdditionalInfo string
}

var weekdays = [7]struct {
	short string
	field string
}{
	{"Mon", "Monday"},
	{"Tue", "Tuesday"},
	{"Wed", "Wednesday"},
	{"Thu", "Thursday"},
	{"Fri", "Friday"},
	{"Sat", "Saturday"},
	{"Sun", "Sunday"},
}

// StoreFromDocument maps the index's store fields onto a Store.
func StoreFromDocument(doc Document) Store {
	st := Store{
		Name:           doc.Field("StoreName"),
		ID:             stringify(doc["StoreId"]),
		Address:        doc.Field("Address"),
		City:           doc.Field("City"),
		State:          doc.Field("State"),
		Leader:         doc.Field("StoreLeader"),
		LeaderEmail:    doc.Field("StoreLeaderEmail"),
		DistrictName:   doc.Field("DistrictName"),
		DistrictLeader: doc.Field("DistrictLeader"),
		RegionName:     doc.Field("RegionName"),
		RegionLeader:   doc.Field("RegionLeader"),
		AreaName:       doc.Field("AreaName"),
		AreaLeader:     doc.Field("AreaLeader"),
		AdditionalInfo: doc.Field("content"),
	}
	for i, d := range weekdays {
		st.Hours[i] = doc.Field(d.field)
	}
	return st
}

// FormatStore renders a store record, one labelled fact per line.
func FormatStore(st Store) string {
	hours := make([]string, len(weekdays))
	for i, d := range weekdays {
		hours[i] = d.short + " " + or(st.Hours[i], "Closed")
	}

	lines := []string{
		fmt.Sprintf("Store: %s (ID: %s)", or(st.Name, "Unknown"), or(st.ID, "N/A")),
		fmt.Sprintf("Location: %s, %s, %s", or(st.Address, "N/A"), or(st.City, "N/A"), or(st.State, "N/A")),
		fmt.Sprintf("Store Leader: %s (%s)", or(st.Leader, "N/A"), or(st.LeaderEmail, "N/A")),
		fmt.Sprintf("District: %s - %s", or(st.DistrictName, "N/A"), or(st.DistrictLeader, "N/A")),
		fmt.Sprintf("Region: %s - %s", or(st.RegionName, "N/A"), or(st.RegionLeader, "N/A")),
		fmt.Sprintf("Area: %s - %s", or(st.AreaName, "N/A"), or(st.AreaLeader, "N/A")),
		"Hours: " + strings.Join(hours, " | "),
	}
	if st.AdditionalInfo != "" {
		lines = append(lines, "Info: "+st.AdditionalInfo)
	}
	return strings.Join(lines, "\n")
}

// FormatDocument renders a document chunk under a title banner.
func FormatDocument(title, content string) string {
	var sb strings.Builder
	sb.WriteString("\nDOCUMENT INFORMATION\n====================\n")
	sb.WriteString("Title: ")
	sb.WriteString(or(title, "Unknown"))
	sb.WriteString("\n\nCONTENT\n-------\n")
	sb.WriteString(or(content, noContent))
	sb.WriteString("\n")
	return sb.String()
}

// Format renders one hit. Records with City and Address are stores; hits
// with a chunk or content field are documents. Anything else, and
// documents whose content is empty, report false.
func Format(doc Document) (string, bool) {
	if doc.Field("City") != "" && doc.Field("Address") != "" {
		return FormatStore(StoreFromDocument(doc)), true
	}

	raw := doc.Field("chunk")
	if raw == "" {
		raw = doc.Field("content")
	}
	content := markup.ToText(raw)
	if content == "" || content == noContent {
		return "", false
	}
	return FormatDocument(or(doc.Field("Title"), "Document"), content), true
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// stringify renders ids that the index may type as numbers.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
