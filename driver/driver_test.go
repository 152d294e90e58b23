// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package driver_test

import (
	"errors"
	"testing"

	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/driver/nulldrv"
)

func TestDrivers(t *testing.T) {
	drivers := driver.Drivers()
	if len(drivers) == 0 {
		t.Fatal("driver.Drivers: no driver registered")
	}
	for i := range drivers {
		name := drivers[i].Name()
		for j := range i {
			if name == drivers[j].Name() {
				t.Error("driver.Drivers: Driver.Name is not unique")
			}
		}
	}
	drivers2 := driver.Drivers()
	if len(drivers) != len(drivers2) {
		t.Error("driver.Drivers: length mismatch")
	} else {
		for i := range drivers {
			if drivers[i].Name() != drivers2[i].Name() {
				t.Error("driver.Drivers: Driver.Name mismatch")
			}
		}
	}
}

func TestOpen(t *testing.T) {
	drv, gpu, err := driver.Open("NULL")
	if err != nil {
		t.Fatalf("driver.Open: unexpected error: %v", err)
	}
	defer drv.Close()
	if drv.Name() != nulldrv.Name {
		t.Fatalf("driver.Open: Driver.Name\nhave %s\nwant %s", drv.Name(), nulldrv.Name)
	}
	if gpu.Driver() != drv {
		t.Error("driver.Open: GPU.Driver differs from opened Driver")
	}
	if gpu2, _ := drv.Open(); gpu2 != gpu {
		t.Error("Driver.Open: GPU differs on second call")
	}
	if _, _, err := driver.Open("no such driver"); !errors.Is(err, driver.ErrNoDriver) {
		t.Fatalf("driver.Open: unknown name\nhave %v\nwant %v", err, driver.ErrNoDriver)
	}
}

func TestDriverName(t *testing.T) {
	drv, _, err := driver.Open(nulldrv.Name)
	if err != nil {
		t.Fatal("Failed to Open drv - cannot continue")
	}
	name := drv.Name()
	if name == "" {
		t.Error("Driver.Name: name is empty")
	}
	drv.Close()
	if drv.Name() != name {
		t.Error("Driver.Name: unexpected name after call to Close")
	}
	_, err = drv.Open()
	if err != nil {
		t.Fatal("Failed to re-Open drv - cannot continue")
	}
	defer drv.Close()
	if drv.Name() != name {
		t.Error("Driver.Name: unexpected name after call to Open")
	}
}

type failDriver struct{}

func (failDriver) Open() (driver.GPU, error) { return nil, driver.ErrNotInstalled }
func (failDriver) Name() string              { return "fail" }
func (failDriver) Close()                    {}

func TestRegister(t *testing.T) {
	n := len(driver.Drivers())
	driver.Register(failDriver{})
	driver.Register(failDriver{})
	if x := len(driver.Drivers()); x != n+1 {
		t.Fatalf("driver.Register: len(Drivers())\nhave %d\nwant %d", x, n+1)
	}
	if _, _, err := driver.Open("fail"); !errors.Is(err, driver.ErrNotInstalled) {
		t.Fatalf("driver.Open: failing driver\nhave %v\nwant %v", err, driver.ErrNotInstalled)
	}
}
