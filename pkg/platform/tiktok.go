package platform

import "github.com/sko/reframe/pkg/types"

type TikTok struct{}

func init() {
	Register(&TikTok{})
}

func (p *TikTok) GetName() string {
	return "tiktok"
}

func (p *TikTok) GetTargetSpec() types.TargetSpec {
	return types.TargetSpec{Width: 1080, Height: 1920}
}

func (p *TikTok) GetMaxDuration() int {
	return 180
}

func (p *TikTok) GetVideoBitrate() string {
	return "2M"
}

func (p *TikTok) GetOutputFormat() string {
	return "mp4"
}
