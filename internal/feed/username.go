package feed

import (
	"fmt"
	"math/rand"
)

var usernameAdjectives = []string{
	"swift", "quiet", "bold", "lucky", "clever",
	"steady", "rapid", "keen", "brave", "calm",
}

var usernameNouns = []string{
	"otter", "falcon", "badger", "lynx", "heron",
	"marmot", "osprey", "viper", "raven", "ibex",
}

// randomUsername produces names like "swift_otter_4821". Collisions are
// possible and handled by the caller's bounded retry.
func randomUsername() string {
	adjective := usernameAdjectives[rand.Intn(len(usernameAdjectives))]
	noun := usernameNouns[rand.Intn(len(usernameNouns))]
	return fmt.Sprintf("%s_%s_%04d", adjective, noun, rand.Intn(10000))
}
