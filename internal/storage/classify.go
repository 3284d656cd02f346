package storage

import (
	"math"

	"github.com/ecst/vbuild/internal/gateway"
)

type Media string

const (
	MediaSSD Media = "SSD"
	MediaHDD Media = "HDD"
)

const bytesPerGB = 1 << 30

type Classification struct {
	CanonicalName string  `json:"canonicalName"`
	CapacityGB    float64 `json:"capacityGB"`
	Media         Media   `json:"media"`
}

// Classify reports the device capacity in GB rounded to two decimals and
// its media type.
func Classify(d gateway.StorageDevice) Classification {
	media := MediaHDD
	if d.SSD {
		media = MediaSSD
	}
	return Classification{
		CanonicalName: d.CanonicalName,
		CapacityGB:    math.Round(float64(d.CapacityBytes)/bytesPerGB*100) / 100,
		Media:         media,
	}
}

// SelectDiskGroup splits eligible devices into a cache device and the
// capacity tier. Without any HDD the group is all-flash: the smallest SSD
// caches and the remaining SSDs hold capacity. Otherwise the group is
// hybrid: the first SSD caches and every HDD holds capacity.
func SelectDiskGroup(eligible []gateway.StorageDevice) (gateway.StorageDevice, []gateway.StorageDevice, error) {
	var ssds, hdds []gateway.StorageDevice
	for _, d := range eligible {
		if d.SSD {
			ssds = append(ssds, d)
		} else {
			hdds = append(hdds, d)
		}
	}

	if len(hdds) == 0 {
		if len(ssds) < 2 {
			return gateway.StorageDevice{}, nil, gateway.NewErrValidation("all-flash disk group needs at least 2 SSDs, found %d", len(ssds))
		}
		smallest := 0
		for i, d := range ssds {
			if d.CapacityBytes < ssds[smallest].CapacityBytes {
				smallest = i
			}
		}
		capacity := make([]gateway.StorageDevice, 0, len(ssds)-1)
		for i, d := range ssds {
			if i != smallest {
				capacity = append(capacity, d)
			}
		}
		if len(capacity) == 0 {
			return gateway.StorageDevice{}, nil, gateway.NewErrValidation("no SSD left for the capacity tier")
		}
		return ssds[smallest], capacity, nil
	}

	if len(ssds) == 0 {
		return gateway.StorageDevice{}, nil, gateway.NewErrValidation("hybrid disk group needs at least 1 SSD for cache, found none")
	}
	return ssds[0], hdds, nil
}
