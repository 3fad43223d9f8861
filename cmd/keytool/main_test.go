package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaflow/internal/timecode"
)

func TestEncodeDecode(t *testing.T) {
	key, err := timecode.Encode(20240102, 93000)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run([]string{"encode", "20240102", "093000"}, &out))
	assert.Equal(t, key.String(), strings.Fields(out.String())[1])

	out.Reset()
	require.NoError(t, run([]string{"decode", "-partitions", "4", strconv.FormatUint(uint64(key), 10)}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "20240102_093000\tpartition="))
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(nil, &out), errUsage)
	assert.ErrorIs(t, run([]string{"frobnicate"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"encode", "20240102"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"encode", "20300101", "093000"}, &out), timecode.ErrOutOfRange)
	assert.Error(t, run([]string{"decode", "abc"}, &out))
}
