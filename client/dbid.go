package client

import (
	"encoding/hex"
	"kwil-client/util/byteutil"
	"kwil-client/util/hashutil"
	"strings"
)

// GenerateDBID derives the identifier of the database name deployed by owner.
func GenerateDBID(name string, owner []byte) string {
	return "x" + hex.EncodeToString(hashutil.Sha224(byteutil.Concat([]byte(strings.ToLower(name)), owner)))
}
