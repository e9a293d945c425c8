package gpustats

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver identifies the GPU driver implementation that was loaded.
type Driver string

const (
	DriverGL            Driver = "gl"
	DriverGLUpdated     Driver = "gl_updated"
	DriverVulkan        Driver = "vulkan"
	DriverVulkanUpdated Driver = "vulkan_updated"
)

// Family groups the supported driver variants by API family.
type Family string

const (
	FamilyOpenGL Family = "opengl"
	FamilyVulkan Family = "vulkan"
)

// Family resolves the driver variant to its API family. The second return
// value is false for unsupported variants, which must not be aggregated.
func (d Driver) Family() (Family, bool) {
	switch d {
	case DriverGL, DriverGLUpdated:
		return FamilyOpenGL, true
	case DriverVulkan, DriverVulkanUpdated:
		return FamilyVulkan, true
	default:
		// Pass-through variants (e.g. ANGLE) carry no system or updated
		// driver package info, so they are not counted.
		return "", false
	}
}

// InsertArgs describes a single driver loading occurrence as reported by the
// driver loading notifier.
type InsertArgs struct {
	DriverPackageName string `json:"driver_package_name"`
	DriverVersionName string `json:"driver_version_name"`
	DriverVersionCode uint64 `json:"driver_version_code"`
	DriverBuildTime   int64  `json:"driver_build_time"`
	AppPackageName    string `json:"app_package_name"`
	Driver            Driver `json:"driver"`
	IsDriverLoaded    bool   `json:"is_driver_loaded"`
	DriverLoadingTime int64  `json:"driver_loading_time"`
}

// GlobalRecord aggregates loading counters for one distinct driver version
// code. Identity fields are set on first insertion and never updated;
// counters only grow until the record is cleared or pulled.
type GlobalRecord struct {
	DriverPackageName     string `json:"driver_package_name"`
	DriverVersionName     string `json:"driver_version_name"`
	DriverVersionCode     uint64 `json:"driver_version_code"`
	DriverBuildTime       int64  `json:"driver_build_time"`
	GLLoadingCount        int64  `json:"gl_loading_count"`
	GLLoadingFailureCount int64  `json:"gl_loading_failure_count"`
	VKLoadingCount        int64  `json:"vk_loading_count"`
	VKLoadingFailureCount int64  `json:"vk_loading_failure_count"`
}

func (r *GlobalRecord) addLoadingCount(family Family, isDriverLoaded bool) {
	switch family {
	case FamilyOpenGL:
		r.GLLoadingCount++
		if !isDriverLoaded {
			r.GLLoadingFailureCount++
		}
	case FamilyVulkan:
		r.VKLoadingCount++
		if !isDriverLoaded {
			r.VKLoadingFailureCount++
		}
	}
}

// String renders the record as a single dump line.
func (r *GlobalRecord) String() string {
	return fmt.Sprintf(
		"driverPackageName=%s driverVersionName=%s driverVersionCode=%d driverBuildTime=%d glLoadingCount=%d glLoadingFailureCount=%d vkLoadingCount=%d vkLoadingFailureCount=%d",
		r.DriverPackageName, r.DriverVersionName, r.DriverVersionCode, r.DriverBuildTime,
		r.GLLoadingCount, r.GLLoadingFailureCount, r.VKLoadingCount, r.VKLoadingFailureCount)
}

// AppRecord aggregates loading time samples for one distinct
// (app package, driver version code) pair. The sample sequences are
// append-only and preserve insertion order.
type AppRecord struct {
	AppPackageName    string  `json:"app_package_name"`
	DriverVersionCode uint64  `json:"driver_version_code"`
	GLLoadingTimes    []int64 `json:"gl_loading_times"`
	VKLoadingTimes    []int64 `json:"vk_loading_times"`
}

func (r *AppRecord) addLoadingTime(family Family, loadingTime int64) {
	switch family {
	case FamilyOpenGL:
		r.GLLoadingTimes = append(r.GLLoadingTimes, loadingTime)
	case FamilyVulkan:
		r.VKLoadingTimes = append(r.VKLoadingTimes, loadingTime)
	}
}

// String renders the record as a single dump line.
func (r *AppRecord) String() string {
	return fmt.Sprintf("appPackageName=%s driverVersionCode=%d glDriverLoadingTime=%s vkDriverLoadingTime=%s",
		r.AppPackageName, r.DriverVersionCode,
		formatLoadingTimes(r.GLLoadingTimes), formatLoadingTimes(r.VKLoadingTimes))
}

func formatLoadingTimes(times []int64) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = strconv.FormatInt(t, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// appKey builds the composite app table key. The separator keeps distinct
// (app, code) pairs from colliding after concatenation.
func appKey(appPackageName string, driverVersionCode uint64) string {
	return appPackageName + ":" + strconv.FormatUint(driverVersionCode, 10)
}
