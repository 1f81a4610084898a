package biz

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Fingerprint derives a stable cache key fragment from the fields of a query
// request that affect its answer: the query text, the result count, the
// embeddings toggle and the metadata filters. Transport metadata and
// timestamps never participate, so identical questions map to the same entry.
func Fingerprint(req *QueryRequest) string {
	var sb strings.Builder
	sb.WriteString("q=")
	sb.WriteString(req.Query)
	sb.WriteString("|k=")
	sb.WriteString(strconv.Itoa(req.K))
	sb.WriteString("|e=")
	sb.WriteString(strconv.FormatBool(req.UseEmbeddings))

	if len(req.Filters) > 0 {
		keys := make([]string, 0, len(req.Filters))
		for k := range req.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString("|f:")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(req.Filters[k])
		}
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
