package capture

import (
	"github.com/camgrab/camgrab/internal/app"
	diag "github.com/camgrab/camgrab/internal/v4l2"
	"github.com/camgrab/camgrab/pkg/v4l2/device"
)

func openDevice(path string) (Device, error) {
	dev, err := device.Open(path)
	if err != nil {
		log := app.GetLogger("v4l2")
		log.Debug().Strs("devices", diag.ListDevices("/dev")).Msg("[v4l2] available")
		return nil, err
	}
	return dev, nil
}
