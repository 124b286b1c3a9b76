package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/xpool-finance/xpool-signer/pkg/decimal"
)

func TestRecordSignature(t *testing.T) {
	before := testutil.ToFloat64(SignaturesTotal.WithLabelValues("decred", "true"))
	RecordSignature("decred", true)
	assert.Equal(t, before+1, testutil.ToFloat64(SignaturesTotal.WithLabelValues("decred", "true")))
}

func TestRecordDigest(t *testing.T) {
	ok := testutil.ToFloat64(DigestsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(DigestsTotal.WithLabelValues("failed"))

	RecordDigest(nil)
	RecordDigest(errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(DigestsTotal.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(DigestsTotal.WithLabelValues("failed")))
}

func TestRecordDecimalsLookup(t *testing.T) {
	before := testutil.ToFloat64(DecimalsLookupsTotal.WithLabelValues("chain", "success"))
	RecordDecimalsLookup("chain", nil, 20*time.Millisecond)
	RecordDecimalsLookup("static", nil, 0)

	assert.Equal(t, before+1, testutil.ToFloat64(DecimalsLookupsTotal.WithLabelValues("chain", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(DecimalsLookupDuration))
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("rpc", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("rpc")))
	SetBreakerState("rpc", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("rpc")))
}

func TestRecordRegistryOp(t *testing.T) {
	before := testutil.ToFloat64(RegistryOpsTotal.WithLabelValues("file", "set", "failed"))
	RecordRegistryOp("file", "set", errors.New("disk full"))
	assert.Equal(t, before+1, testutil.ToFloat64(RegistryOpsTotal.WithLabelValues("file", "set", "failed")))
}

func TestConversionStatus(t *testing.T) {
	_, precisionErr := decimal.ToBaseUnits("1.23", 1)
	_, invalidErr := decimal.ToBaseUnits("1,5", 6)

	assert.Equal(t, "success", ConversionStatus(nil))
	assert.Equal(t, "precision", ConversionStatus(precisionErr))
	assert.Equal(t, "invalid", ConversionStatus(invalidErr))
	assert.Equal(t, "invalid", ConversionStatus(errors.New("boom")))

	before := testutil.ToFloat64(ConversionsTotal.WithLabelValues(DirectionToBase, "precision"))
	RecordConversion(DirectionToBase, ConversionStatus(precisionErr))
	assert.Equal(t, before+1, testutil.ToFloat64(ConversionsTotal.WithLabelValues(DirectionToBase, "precision")))
}
