package checksum

import "testing"

func TestSum(t *testing.T) {
	a := Sum([]byte(`[{"id":"1"}]`))
	if a != Sum([]byte(`[{"id":"1"}]`)) {
		t.Error("same input, different digests")
	}
	if a == Sum([]byte(`[{"id":"2"}]`)) {
		t.Error("different input, same digest")
	}
	if a.IsZero() || !(Digest{}).IsZero() {
		t.Error("IsZero wrong")
	}
	if got := Sum(nil).String(); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty digest = %s", got)
	}
}
