package stream

import "testing"

func TestManifestSealedSampleTotal(t *testing.T) {
	m := NewManifest("stream://dev/a", "defhash")
	m.AppendSealed("h1", 4000, 1000)
	m.AppendSealed("h2", 4000, 1000)
	m.SetStaging("/tmp/staging-2", 2000, 500)

	if got := m.SealedSampleTotal(); got != 2000 {
		t.Fatalf("SealedSampleTotal() = %d, want 2000", got)
	}
	if m.TotalSamples != 2000 {
		t.Fatalf("TotalSamples = %d, want 2000", m.TotalSamples)
	}

	m.DropStaging()
	for _, c := range m.Chunks {
		if c.State == ChunkStaging {
			t.Fatalf("expected staging chunk to be dropped")
		}
	}
}
