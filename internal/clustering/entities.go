package clustering

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Entity Resolution
//
// Independent of similarity clustering, three pattern detectors link
// addresses believed to be under common control; their outputs are
// unioned into named entities and entities sharing any address merge.
//
//   - Peel chain: a large A->B transfer followed within one hour by a
//     B->C transfer of at most 10% of the inbound amount. The classic
//     change-passing signature described by Meiklejohn et al.
//   - Timing correlation: two wallets whose active-hour sets overlap with
//     Jaccard similarity of at least 0.8 are operating on the same
//     schedule.
//   - Common input: requires raw multi-input transaction data that the
//     simplified record shape does not carry. Explicit extension point;
//     it contributes no links today.

const (
	peelChainWindow    = time.Hour
	peelChainMaxRatio  = 0.10
	peelChainMinUSD    = 100_000
	timingJaccardFloor = 0.8
)

// Heuristic names recorded on resolved entities.
const (
	HeuristicPeelChain         = "peel_chain"
	HeuristicTimingCorrelation = "timing_correlation"
	HeuristicCommonInput       = "common_input"
)

// entityLink is one pairwise ownership signal.
type entityLink struct {
	a, b       string
	heuristic  string
	confidence float64
}

// ResolveEntities runs all detectors over the transaction set and
// profiles, unions their links into entities, and merges entities that
// share any address.
func ResolveEntities(txs []models.TransactionRecord, profiles map[string]*models.WalletProfile) []models.ResolvedEntity {
	var links []entityLink
	links = append(links, detectPeelChains(txs)...)
	links = append(links, detectTimingCorrelation(profiles)...)
	links = append(links, detectCommonInput(txs)...)
	return mergeLinks(links)
}

// detectPeelChains scans for the large-in, small-out-within-the-hour
// signature. Both hops of a peel step belong to one entity, so A, B and
// C all link.
func detectPeelChains(txs []models.TransactionRecord) []entityLink {
	sorted := make([]models.TransactionRecord, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var links []entityLink
	for i, inbound := range sorted {
		if inbound.USD() < peelChainMinUSD {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			outbound := sorted[j]
			gap := outbound.Timestamp.Sub(inbound.Timestamp)
			if gap > peelChainWindow {
				break
			}
			if outbound.FromAddress != inbound.ToAddress {
				continue
			}
			if outbound.USD() <= 0 || outbound.USD() > inbound.USD()*peelChainMaxRatio {
				continue
			}

			// Confidence rises as the peel ratio shrinks and the gap tightens
			ratio := outbound.USD() / inbound.USD()
			confidence := 0.5 + 0.25*(1-ratio/peelChainMaxRatio) + 0.25*(1-gap.Seconds()/peelChainWindow.Seconds())

			links = append(links,
				entityLink{a: inbound.FromAddress, b: inbound.ToAddress, heuristic: HeuristicPeelChain, confidence: confidence},
				entityLink{a: inbound.ToAddress, b: outbound.ToAddress, heuristic: HeuristicPeelChain, confidence: confidence},
			)
		}
	}
	return links
}

// detectTimingCorrelation links wallet pairs whose active-hour sets have
// Jaccard similarity of at least 0.8.
func detectTimingCorrelation(profiles map[string]*models.WalletProfile) []entityLink {
	addrs := make([]string, 0, len(profiles))
	for addr := range profiles {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var links []entityLink
	for i := 0; i < len(addrs); i++ {
		for j := i + 1; j < len(addrs); j++ {
			a, b := profiles[addrs[i]], profiles[addrs[j]]
			if a == nil || b == nil || len(a.ActiveHours) == 0 || len(b.ActiveHours) == 0 {
				continue
			}
			if sim := jaccardHours(a.ActiveHours, b.ActiveHours); sim >= timingJaccardFloor {
				links = append(links, entityLink{a: addrs[i], b: addrs[j], heuristic: HeuristicTimingCorrelation, confidence: sim})
			}
		}
	}
	return links
}

// detectCommonInput is the extension point for the common-input-ownership
// heuristic. The simplified record shape carries no multi-input data, so
// no links are produced.
func detectCommonInput(_ []models.TransactionRecord) []entityLink {
	return nil
}

// mergeLinks unions pairwise links into entities via union-find, then
// assembles the named entity records.
func mergeLinks(links []entityLink) []models.ResolvedEntity {
	if len(links) == 0 {
		return nil
	}

	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, l := range links {
		union(l.a, l.b)
	}

	type entityAcc struct {
		addresses  map[string]bool
		heuristics map[string]bool
		confidence float64
	}
	groups := make(map[string]*entityAcc)
	for _, l := range links {
		root := find(l.a)
		acc := groups[root]
		if acc == nil {
			acc = &entityAcc{addresses: make(map[string]bool), heuristics: make(map[string]bool)}
			groups[root] = acc
		}
		acc.addresses[l.a] = true
		acc.addresses[l.b] = true
		acc.heuristics[l.heuristic] = true
		if l.confidence > acc.confidence {
			acc.confidence = l.confidence
		}
	}

	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	entities := make([]models.ResolvedEntity, 0, len(groups))
	for _, root := range roots {
		acc := groups[root]
		addresses := setToSorted(acc.addresses)
		heuristics := setToSorted(acc.heuristics)
		entities = append(entities, models.ResolvedEntity{
			EntityID:   entityID(addresses),
			Addresses:  addresses,
			Heuristics: heuristics,
			Confidence: acc.confidence,
		})
	}
	return entities
}

// entityID derives a stable identifier from the sorted member list.
func entityID(sortedAddresses []string) string {
	h := sha256.New()
	for _, addr := range sortedAddresses {
		h.Write([]byte(addr))
		h.Write([]byte{0})
	}
	return "entity_" + hex.EncodeToString(h.Sum(nil))[:16]
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
