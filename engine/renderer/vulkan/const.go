package vulkan

const engineName = "Curen"

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// Vulkan only guarantees 128 bytes of push constants.
const maxPushConstantSize uint32 = 128
