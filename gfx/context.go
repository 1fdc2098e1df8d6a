// Package gfx implements the frame loop's graphics side on Vulkan.
package gfx

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/exp/slog"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{khr_swapchain.ExtensionName}

// SurfaceSource is a window Vulkan can present to.
type SurfaceSource interface {
	VulkanInstanceExtensions() []string
	CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)
}

type Options struct {
	ApplicationName string

	// EnableValidation turns on the Khronos validation layer when it is
	// installed. Validation messages go to Logger.
	EnableValidation bool
	Logger           *slog.Logger
}

// Context owns the instance, the window surface, the chosen device with its
// single graphics+present queue, and the command pool.
type Context struct {
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	device         Selection
	memoryTypes    []core1_0.MemoryPropertyFlags

	queue              core1_0.Queue
	swapchainExtension khr_swapchain.ExtensionDriver
	commandPool        core1_0.CommandPool
	tracker            *tracker

	retiredSwapchains []*Swapchain
}

func NewContext(globalDriver core1_0.GlobalDriver, source SurfaceSource, options Options) (*Context, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Context{
		logger:       logger,
		globalDriver: globalDriver,
	}

	err := c.init(source, options)
	if err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *Context) init(source SurfaceSource, options Options) error {
	validation, err := c.createInstance(source, options)
	if err != nil {
		return errors.Wrap(err, "failed to create instance")
	}

	if validation {
		err = c.setupDebugMessenger()
		if err != nil {
			return errors.Wrap(err, "failed to set up debug messenger")
		}
	}

	c.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.surface, err = source.CreateSurface(c.instanceDriver.Instance(), c.surfaceExtension)
	if err != nil {
		return errors.Wrap(err, "failed to create surface")
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = c.createLogicalDevice()
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}

	err = c.createCommandPool()
	if err != nil {
		return errors.Wrap(err, "failed to create command pool")
	}

	c.tracker = newTracker(c.deviceDriver)
	return nil
}

// WaitIdle blocks until the device has finished all submitted work and
// reclaims everything that work held, retired swapchains included.
func (c *Context) WaitIdle() error {
	_, err := c.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "failed to wait for device idle")
	}

	c.destroyRetiredSwapchains()
	return c.tracker.reclaim()
}

// releaseRetiredSwapchains hands the retired swapchains to the tracker, which
// destroys them once every submission made so far has completed.
func (c *Context) releaseRetiredSwapchains() {
	for _, swapchain := range c.retiredSwapchains {
		c.tracker.retire(swapchain.destroy)
	}
	c.retiredSwapchains = nil
}

// destroyRetiredSwapchains destroys the retired swapchains immediately. The
// device must be idle.
func (c *Context) destroyRetiredSwapchains() {
	for _, swapchain := range c.retiredSwapchains {
		swapchain.destroy()
	}
	c.retiredSwapchains = nil
}

func (c *Context) createInstance(source SurfaceSource, options Options) (validation bool, err error) {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    options.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_0,
	}

	extensions, _, err := c.globalDriver.AvailableExtensions()
	if err != nil {
		return false, err
	}

	for _, ext := range source.VulkanInstanceExtensions() {
		_, hasExt := extensions[ext]
		if !hasExt {
			return false, errors.Errorf("window requires missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if options.EnableValidation {
		_, hasDebugUtils := extensions[ext_debug_utils.ExtensionName]
		validation, err = c.validationAvailable(hasDebugUtils)
		if err != nil {
			return false, err
		}
	}

	if validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayer)
		instanceOptions.Next = c.debugMessengerOptions()
	}

	instance, _, err := c.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return false, err
	}

	c.instanceDriver, err = c.globalDriver.BuildInstanceDriver(instance)
	if err != nil {
		return false, err
	}

	return validation, nil
}

func (c *Context) validationAvailable(hasDebugUtils bool) (bool, error) {
	layers, _, err := c.globalDriver.AvailableLayers()
	if err != nil {
		return false, err
	}

	_, hasLayer := layers[validationLayer]
	if !hasLayer || !hasDebugUtils {
		c.logger.Warn("validation requested but not installed, continuing without it",
			slog.String("layer", validationLayer))
		return false, nil
	}
	return true, nil
}

func (c *Context) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    c.logDebug,
	}
}

func (c *Context) setupDebugMessenger() error {
	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, c.debugMessengerOptions())
	return err
}

func (c *Context) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}

	c.logger.Log(context.Background(), level, data.Message,
		slog.Any("type", msgType),
		slog.Any("severity", severity))
	return false
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}

	candidates := make([]Candidate, 0, len(physicalDevices))
	for index, device := range physicalDevices {
		candidate, err := c.describeDevice(index, device)
		if err != nil {
			return errors.Wrapf(err, "failed to query physical device %d", index)
		}

		c.logger.Debug("found physical device",
			slog.Int("index", index),
			slog.String("name", candidate.Name),
			slog.String("class", candidate.Class.String()),
			slog.Bool("swapchain", candidate.SupportsSwapchain))
		candidates = append(candidates, candidate)
	}

	selection, err := SelectDevice(candidates)
	if err != nil {
		return err
	}

	c.device = selection
	c.physicalDevice = physicalDevices[selection.Candidate.Index]

	memoryProperties := c.instanceDriver.GetPhysicalDeviceMemoryProperties(c.physicalDevice)
	for _, memoryType := range memoryProperties.MemoryTypes {
		c.memoryTypes = append(c.memoryTypes, memoryType.PropertyFlags)
	}

	c.logger.Info("using device",
		slog.String("name", selection.Candidate.Name),
		slog.String("class", selection.Candidate.Class.String()),
		slog.String("pipeline_cache_uuid", selection.Candidate.CacheUUID.String()),
		slog.Int("queue_family", selection.QueueFamily))
	return nil
}

func (c *Context) describeDevice(index int, device core1_0.PhysicalDevice) (Candidate, error) {
	properties, err := c.instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return Candidate{}, err
	}

	candidate := Candidate{
		Index:     index,
		Name:      properties.DriverName,
		Class:     classify(properties.DriverType),
		CacheUUID: properties.PipelineCacheUUID,
	}

	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return Candidate{}, err
	}

	candidate.SupportsSwapchain = true
	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			candidate.SupportsSwapchain = false
		}
	}

	queueFamilies := c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
	for queueFamilyIdx, queueFamily := range queueFamilies {
		supported, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceSupport(c.surface, device, queueFamilyIdx)
		if err != nil {
			return Candidate{}, err
		}

		candidate.QueueFamilies = append(candidate.QueueFamilies, QueueFamilySupport{
			Graphics: queueFamily.QueueFlags&core1_0.QueueGraphics != 0,
			Present:  supported,
		})
	}

	return candidate, nil
}

func (c *Context) createLogicalDevice() error {
	extensionNames := append([]string{}, deviceExtensions...)

	// Makes this compatible with vulkan portability, necessary to run on mobile & mac
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := c.instanceDriver.CreateDevice(c.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: c.device.QueueFamily,
				QueuePriorities:  []float32{1.0},
			},
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.deviceDriver, err = c.instanceDriver.BuildDeviceDriver(device)
	if err != nil {
		return err
	}

	c.queue = c.deviceDriver.GetQueue(c.device.QueueFamily, 0)
	c.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.deviceDriver)
	return nil
}

func (c *Context) createCommandPool() error {
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: c.device.QueueFamily,
	})
	if err != nil {
		return err
	}

	c.commandPool = pool
	return nil
}

// Destroy idles the device and destroys everything the context created, in
// reverse order. Objects handed out by the context must be destroyed first.
func (c *Context) Destroy() {
	if c.deviceDriver != nil {
		_, err := c.deviceDriver.DeviceWaitIdle()
		if err != nil {
			c.logger.Warn("failed to wait for device idle", slog.Any("error", err))
		}
	}

	c.destroyRetiredSwapchains()

	if c.tracker != nil {
		c.tracker.destroy()
		c.tracker = nil
	}

	if c.commandPool.Initialized() {
		c.deviceDriver.DestroyCommandPool(c.commandPool, nil)
		c.commandPool = core1_0.CommandPool{}
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.surface.Initialized() {
		c.surfaceExtension.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}
