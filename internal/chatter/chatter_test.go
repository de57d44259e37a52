package chatter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		l := Random(r)
		assert.Contains(t, Users(), l.Name)
		assert.Contains(t, Messages(), l.Text)
		assert.Equal(t, AvatarFor(l.Name), l.Avatar)
	}
}

func TestAvatarFor_EscapesName(t *testing.T) {
	assert.Equal(t, "https://ui-avatars.com/api/?name=Sarah+J.&background=random", AvatarFor("Sarah J."))
}

func TestUsers_ReturnsCopy(t *testing.T) {
	u := Users()
	u[0] = "changed"
	assert.NotEqual(t, "changed", Users()[0])
}
