package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/brick-sorter/internal/version"
)

func TestListenPort(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{addr: ":8080", want: 8080},
		{addr: "localhost:8081", want: 8081},
		{addr: "[::1]:9000", want: 9000},
		{addr: "localhost", wantErr: true},
		{addr: "localhost:http", wantErr: true},
		{addr: ":0", wantErr: true},
		{addr: ":70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := ListenPort(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTXTRecords(t *testing.T) {
	txt := TXTRecords(2, "B")
	assert.Contains(t, txt, "version="+version.Version)
	assert.Contains(t, txt, "sensors=2")
	assert.Contains(t, txt, "kicker=B")
	assert.Contains(t, txt, "path=/debug/")
}

func TestAdvertiserShutdownNil(t *testing.T) {
	var a *Advertiser
	a.Shutdown()
	(&Advertiser{}).Shutdown()
}
