package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ROADLINE_TEST_MODE") == "" {
			_ = os.Setenv("ROADLINE_TEST_MODE", "1")
		}
	})
}
