package ptr_test

import (
	"testing"

	"github.com/ilmarik/fitcoach/internal/ptr"
)

func TestRef(t *testing.T) {
	t.Run("copies the value", func(t *testing.T) {
		day := 3
		p := ptr.Ref(day)
		if p == nil {
			t.Fatal("want non-nil pointer")
		}
		if *p != 3 {
			t.Errorf("*p = %d, want 3", *p)
		}

		day = 5
		if *p != 3 {
			t.Errorf("*p = %d after mutating the source, want 3", *p)
		}
	})

	t.Run("struct", func(t *testing.T) {
		type window struct {
			Start, End string
		}
		w := window{Start: "09:00", End: "11:00"}
		p := ptr.Ref(w)
		if p == nil {
			t.Fatal("want non-nil pointer")
		}
		if *p != w {
			t.Errorf("*p = %+v, want %+v", *p, w)
		}
	})
}
