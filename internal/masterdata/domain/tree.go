package masterdata

// StationTree is one station with its nested descendants.
type StationTree struct {
	Station   Station        `json:"station"`
	Platforms []PlatformTree `json:"platforms"`
}

// PlatformTree is a platform with its instruments.
type PlatformTree struct {
	Platform
	Instruments []InstrumentTree `json:"instruments"`
}

// InstrumentTree is an instrument with its ROIs.
type InstrumentTree struct {
	Instrument
	ROIs []ROI `json:"rois"`
}

// Counts returns the number of platforms, instruments and ROIs in the tree.
func (t StationTree) Counts() (platforms, instruments, rois int) {
	platforms = len(t.Platforms)
	for _, p := range t.Platforms {
		instruments += len(p.Instruments)
		for _, i := range p.Instruments {
			rois += len(i.ROIs)
		}
	}
	return platforms, instruments, rois
}

// BuildStationTree nests flat listings under their station.
func BuildStationTree(station Station, platforms []Platform, instruments []Instrument, rois []ROI) StationTree {
	roisByInstrument := make(map[int64][]ROI)
	for _, r := range rois {
		roisByInstrument[r.InstrumentID] = append(roisByInstrument[r.InstrumentID], r)
	}
	instrumentsByPlatform := make(map[int64][]InstrumentTree)
	for _, i := range instruments {
		node := InstrumentTree{Instrument: i, ROIs: roisByInstrument[i.ID]}
		if node.ROIs == nil {
			node.ROIs = []ROI{}
		}
		instrumentsByPlatform[i.PlatformID] = append(instrumentsByPlatform[i.PlatformID], node)
	}
	tree := StationTree{Station: station, Platforms: make([]PlatformTree, 0, len(platforms))}
	for _, p := range platforms {
		if p.StationID != station.ID {
			continue
		}
		node := PlatformTree{Platform: p, Instruments: instrumentsByPlatform[p.ID]}
		if node.Instruments == nil {
			node.Instruments = []InstrumentTree{}
		}
		tree.Platforms = append(tree.Platforms, node)
	}
	return tree
}
