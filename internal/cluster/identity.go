package cluster

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// clusterNamespace scopes the name-based UUIDs handed out as cluster ids
var clusterNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("floq-field/social-cluster"))

// StableID derives a cluster id from the set of contributing tile ids.
// Order and duplicates do not affect the result.
func StableID(tileIDs []string) string {
	ids := slices.Clone(tileIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return uuid.NewSHA1(clusterNamespace, []byte(strings.Join(ids, "\x1f"))).String()
}
