package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinding(t *testing.T) {
	got := Binding("http://localhost:5173", "7b0d1f2e-0f3a-4a63-9f9d-6f3fb0f7a111", "042137")
	assert.Equal(t,
		"http://localhost:5173/courses?sessao=7b0d1f2e-0f3a-4a63-9f9d-6f3fb0f7a111&codigo=042137",
		got)
}

func TestBindingIsDeterministic(t *testing.T) {
	a := Binding("https://presenca.example", "abc", "123456")
	b := Binding("https://presenca.example", "abc", "123456")
	assert.Equal(t, a, b)
}
