package keystore

import (
	"encoding/base64"
	"encoding/json"
	"sort"
)

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKS renders the Ed25519 keys valid now as a JSON Web Key Set. HS256 keys
// are shared secrets and never published.
func (s *Store) JWKS() ([]byte, error) {
	t := s.Snapshot()
	now := s.now()

	set := jwks{Keys: []jwk{}}
	for id, k := range t.keys {
		if k.alg != AlgorithmEdDSA || len(k.public) == 0 || !k.ValidAt(now) {
			continue
		}
		set.Keys = append(set.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: id,
			Alg: string(AlgorithmEdDSA),
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.public),
		})
	}
	sort.Slice(set.Keys, func(i, j int) bool { return set.Keys[i].Kid < set.Keys[j].Kid })
	return json.Marshal(set)
}
