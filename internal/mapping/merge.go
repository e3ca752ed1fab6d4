package mapping

import (
	"os"

	"dvh/internal/dvherr"
)

// Merge loads an obfuscated version's client and server side mappings,
// reverses each to the canonical deobf->obf direction, verifies the
// client/server superset invariant, and returns the reversed client
// mapping (the superset) as the merged result ready for WriteTSRG2.
//
// Per spec.md §4.6, an obfuscated version with one or both side mappings
// absent is not fatal: Merge returns a MappingMissing *dvherr.Error the
// caller should treat as "skip this version", not abort the run.
func Merge(clientMappingsPath, serverMappingsPath string) (*Mappings, error) {
	if !exists(clientMappingsPath) || !exists(serverMappingsPath) {
		return nil, dvherr.Newf(dvherr.MappingMissing, "side mapping absent: client=%s server=%s", clientMappingsPath, serverMappingsPath)
	}

	clientRaw, err := ParseFile(clientMappingsPath)
	if err != nil {
		return nil, dvherr.New(dvherr.MappingMismatch, err)
	}
	serverRaw, err := ParseFile(serverMappingsPath)
	if err != nil {
		return nil, dvherr.New(dvherr.MappingMismatch, err)
	}

	client := clientRaw.Reverse()
	server := serverRaw.Reverse()

	if err := CheckSuperset(client, server); err != nil {
		return nil, err
	}
	return client, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
