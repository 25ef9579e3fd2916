package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// ParseReport summarizes what a pattern parse did with each block.
type ParseReport struct {
	Blocks   int
	Records  int
	Rejected int
	// Padded counts records emitted with at least one optional field empty.
	Padded int
}

// SplitBlocks cuts output into blocks, each starting at a line matched by
// anchor. Text before the first anchor is discarded.
func SplitBlocks(anchor *regexp.Regexp, output string) []string {
	if anchor == nil {
		return nil
	}
	locs := anchor.FindAllStringIndex(output, -1)
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(output)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, output[loc[0]:end])
	}
	return blocks
}

// ParseBlocks applies g to output one block at a time, so a field missing in
// one block never shifts values between neighbors. Blocks lacking a required
// field are rejected; missing optional fields are left empty.
func ParseBlocks(g BlockGrammar, output string) ([]map[Field]string, ParseReport) {
	var report ParseReport
	var out []map[Field]string
	for _, block := range SplitBlocks(g.Anchor, output) {
		report.Blocks++
		rec := make(map[Field]string, len(g.Fields))
		for field, re := range g.Fields {
			if m := re.FindStringSubmatch(block); m != nil {
				rec[field] = strings.TrimSpace(m[1])
			}
		}
		if !hasRequired(rec, g.Required) {
			report.Rejected++
			continue
		}
		if len(nonEmpty(rec)) < len(g.Fields) {
			report.Padded++
		}
		out = append(out, rec)
	}
	report.Records = len(out)
	return out, report
}

func hasRequired(rec map[Field]string, required []Field) bool {
	for _, f := range required {
		if rec[f] == "" {
			return false
		}
	}
	return true
}

func nonEmpty(rec map[Field]string) map[Field]string {
	out := make(map[Field]string, len(rec))
	for k, v := range rec {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// CollectFields runs each field expression over the whole output and returns
// every match in order of appearance.
func CollectFields(fields map[Field]*regexp.Regexp, output string) map[Field][]string {
	out := make(map[Field][]string, len(fields))
	for field, re := range fields {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			out[field] = append(out[field], strings.TrimSpace(m[1]))
		}
	}
	return out
}

// ZipAligned combines per-field match lists positionally. Every field in
// order must have the same number of matches, otherwise a *ParseError is
// returned rather than pairing values from different neighbors.
func ZipAligned(d topology.Dialect, fields map[Field][]string, order []Field) ([]map[Field]string, error) {
	if len(order) == 0 {
		return nil, nil
	}
	n := len(fields[order[0]])
	for _, f := range order[1:] {
		if got := len(fields[f]); got != n {
			return nil, &topology.ParseError{
				Dialect: d,
				Reason:  fmt.Sprintf("misaligned fields: %s has %d values, %s has %d", order[0], n, f, got),
			}
		}
	}
	out := make([]map[Field]string, n)
	for i := 0; i < n; i++ {
		rec := make(map[Field]string, len(order))
		for _, f := range order {
			rec[f] = fields[f][i]
		}
		out[i] = rec
	}
	return out, nil
}
