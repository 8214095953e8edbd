package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// cacheKey derives a deterministic key from everything that can change the
// response: the user, the normalized request, the active prompt version and
// the chain identity. Domains are sorted so order does not fragment keys.
func cacheKey(userID uuid.UUID, req Request, promptVersion, chainID string) string {
	domains := append([]string(nil), req.TargetDomains...)
	sort.Strings(domains)

	payload := fmt.Sprintf("%s|%d|%s|%s|%s|%d|%s|%s",
		userID,
		req.Limit,
		req.Objective,
		strings.Join(domains, ","),
		req.DifficultyPreference,
		req.TimeboxMinutes,
		promptVersion,
		chainID,
	)

	sum := sha256.Sum256([]byte(payload))
	return "rec:" + hex.EncodeToString(sum[:])
}
