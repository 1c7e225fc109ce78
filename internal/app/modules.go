package app

import (
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
	"github.com/eyevinn-osaas/strom-sub001/modules/audiorouter"
	"github.com/eyevinn-osaas/strom-sub001/modules/dynamicinput"
	"github.com/eyevinn-osaas/strom-sub001/modules/mixer"
)

// coreModules is the definitive list of all block modules that are compiled
// into the strom binary.
var coreModules = []registry.Module{
	&audiorouter.Module{},
	&mixer.Module{},
	&dynamicinput.Module{},
}
