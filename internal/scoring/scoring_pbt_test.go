package scoring

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/rawblock/otc-engine/internal/heuristics"
	"github.com/rawblock/otc-engine/pkg/models"
)

// Property: the total score and every component stay inside their
// documented ranges for arbitrary inputs.
func TestScoreBoundsProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total and components within bounds", prop.ForAll(
		func(valueUSD float64, txPerDay float64, entropy float64, unixSec int64, fromConf float64, toConf float64) bool {
			ts := time.Unix(unixSec, 0).UTC()
			v := valueUSD
			in := Input{
				Tx: models.TransactionRecord{
					Hash: "0xp", FromAddress: "A", ToAddress: "B",
					USDValue: &v, Timestamp: ts,
				},
				Profile: &models.WalletProfile{
					TxPerDay:            txPerDay,
					AvgTxUSD:            valueUSD,
					CounterpartyEntropy: entropy,
				},
				Network: &models.NetworkMetrics{
					BetweennessCentrality: 0.5,
					DegreeCentrality:      0.5,
					ClusteringCoefficient: 0.5,
				},
				Timing:     heuristics.AnalyzeTiming(ts),
				FromEntity: EntityMatch{IsOTCDesk: fromConf > 0.5, Confidence: fromConf},
				ToEntity:   EntityMatch{IsOTCDesk: toConf > 0.5, Confidence: toConf},
			}

			total, c := Score(in)
			for _, component := range []float64{
				c.TransferSize, c.WalletProfile, c.NetworkPosition, c.Timing, c.KnownEntity,
			} {
				if component < 0 || component > 100 {
					return false
				}
			}
			return total >= 0 && total <= 100
		},
		gen.Float64Range(0, 1e9),
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 16),
		gen.Int64Range(0, 4_000_000_000),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
